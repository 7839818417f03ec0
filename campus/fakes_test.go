package campus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/hazyhaar/cartable/session"
)

// Test doubles for the Page contract. Everything records what was done to
// it so tests can assert on call order and arguments.

type fakeElement struct {
	ref   string
	label string

	fillErr   error
	clickErr  error
	checkErr  error
	selectErr error
	onClick   func()

	filled   []string
	clicks   int
	checked  []bool
	selected [][]string
}

func (e *fakeElement) Ref() string   { return e.ref }
func (e *fakeElement) Label() string { return e.label }

func (e *fakeElement) Fill(_ context.Context, value string) error {
	if e.fillErr != nil {
		return e.fillErr
	}
	e.filled = append(e.filled, value)
	return nil
}

func (e *fakeElement) Click(_ context.Context) error {
	if e.onClick != nil {
		e.onClick()
	}
	if e.clickErr != nil {
		return e.clickErr
	}
	e.clicks++
	return nil
}

func (e *fakeElement) SetChecked(_ context.Context, want bool) error {
	if e.checkErr != nil {
		return e.checkErr
	}
	e.checked = append(e.checked, want)
	return nil
}

func (e *fakeElement) SelectValues(_ context.Context, values []string) error {
	if e.selectErr != nil {
		return e.selectErr
	}
	e.selected = append(e.selected, values)
	return nil
}

type fakeDialog struct {
	msg        string
	accepted   bool
	dismissed  bool
	acceptErr  error
	dismissErr error
}

func (d *fakeDialog) Message() string { return d.msg }

func (d *fakeDialog) Accept() error {
	if d.acceptErr != nil {
		return d.acceptErr
	}
	d.accepted = true
	return nil
}

func (d *fakeDialog) Dismiss() error {
	if d.dismissErr != nil {
		return d.dismissErr
	}
	d.dismissed = true
	return nil
}

type fakeChooser struct {
	paths  [][]string
	setErr error
}

func (c *fakeChooser) SetFiles(_ context.Context, paths []string) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.paths = append(c.paths, paths)
	return nil
}

type fakeChooserWaiter struct {
	chooser   *fakeChooser
	awaitErr  error
	awaited   bool
	cancelled bool
}

func (w *fakeChooserWaiter) Await(_ context.Context) (FileChooser, error) {
	w.awaited = true
	if w.awaitErr != nil {
		return nil, w.awaitErr
	}
	return w.chooser, nil
}

func (w *fakeChooserWaiter) Cancel() { w.cancelled = true }

type fakePage struct {
	// Probe hits are keyed by the probed selector. A selector with no
	// entry times out, which reads as a negative guard.
	probe    map[string]*fakeElement
	elements map[string]*fakeElement

	navErr        error
	waitPrefixErr error
	busy          bool
	html          string
	url           string
	dialog        *fakeDialog
	waiter        *fakeChooserWaiter

	navigated []string
	probed    []string
	resolved  []string
	armed     int
	cleared   int
	closed    bool
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	if p.navErr != nil {
		return p.navErr
	}
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *fakePage) Probe(_ context.Context, selector string, _ time.Duration) (Element, error) {
	p.probed = append(p.probed, selector)
	el, ok := p.probe[selector]
	if !ok {
		return nil, fmt.Errorf("probe %q: %w", selector, session.ErrTimeout)
	}
	return el, nil
}

func (p *fakePage) WaitURLPrefix(_ context.Context, _ string, _ time.Duration) error {
	return p.waitPrefixErr
}

func (p *fakePage) CaptureSnapshot(_ context.Context) ([]ElementInfo, error) {
	var infos []ElementInfo
	for ref, el := range p.elements {
		infos = append(infos, ElementInfo{Ref: ref, Label: el.label, Visible: true})
	}
	return infos, nil
}

func (p *fakePage) Resolve(ref string) (Element, error) {
	p.resolved = append(p.resolved, ref)
	el, ok := p.elements[ref]
	if !ok {
		return nil, fmt.Errorf("%w: unresolvable reference %q", ErrResolution, ref)
	}
	return el, nil
}

func (p *fakePage) ArmFileChooser(_ time.Duration) ChooserWaiter {
	p.armed++
	if p.waiter == nil {
		p.waiter = &fakeChooserWaiter{chooser: &fakeChooser{}}
	}
	return p.waiter
}

func (p *fakePage) PendingDialog() (Dialog, bool) {
	if p.dialog == nil {
		return nil, false
	}
	return p.dialog, true
}

func (p *fakePage) ClearDialog() {
	p.cleared++
	p.dialog = nil
}

func (p *fakePage) HTML(_ context.Context) (string, error) { return p.html, nil }

func (p *fakePage) CurrentURL() (string, error) { return p.url, nil }

func (p *fakePage) Cookies(_ []string) ([]*http.Cookie, error) { return nil, nil }

func (p *fakePage) Acquire() (func(), error) {
	if p.busy {
		return nil, session.ErrBusy
	}
	return func() {}, nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

func testConfig() Config {
	cfg := Config{
		BaseURL: "https://campus.example.edu",
		Timeouts: Timeouts{
			ProbeMS:       10,
			RedirectMS:    10,
			LoginMS:       10,
			FileChooserMS: 10,
			DialogGraceMS: 1,
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return cfg
}

func newTestService(t *testing.T, page *fakePage) *Service {
	t.Helper()
	s, err := New(testConfig(), func() (Page, error) { return page, nil })
	if err != nil {
		t.Fatal(err)
	}
	return s
}
