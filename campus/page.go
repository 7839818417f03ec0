package campus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/cartable/session"
)

// The pipeline talks to the browser through these contracts so every state
// machine in this package is testable against fakes. The one concrete
// implementation wraps session.Session.

// Element is one resolvable control on the page.
type Element interface {
	Ref() string
	Label() string
	Fill(ctx context.Context, value string) error
	Click(ctx context.Context) error
	SetChecked(ctx context.Context, want bool) error
	SelectValues(ctx context.Context, values []string) error
}

// Dialog is a pending browser dialog awaiting exactly one resolution.
type Dialog interface {
	Message() string
	Accept() error
	Dismiss() error
}

// FileChooser receives the file set for an intercepted picker event.
type FileChooser interface {
	SetFiles(ctx context.Context, paths []string) error
}

// ChooserWaiter is a one-shot armed listener for the file-chooser event.
type ChooserWaiter interface {
	Await(ctx context.Context) (FileChooser, error)
	Cancel()
}

// ElementInfo describes one snapshot entry for reporting to the host.
type ElementInfo struct {
	Ref     string `json:"ref"`
	Tag     string `json:"tag"`
	Type    string `json:"type,omitempty"`
	Label   string `json:"label,omitempty"`
	Visible bool   `json:"visible"`
}

// Page is the session surface the pipeline consumes.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Probe(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	WaitURLPrefix(ctx context.Context, prefix string, timeout time.Duration) error
	CaptureSnapshot(ctx context.Context) ([]ElementInfo, error)
	Resolve(ref string) (Element, error)
	ArmFileChooser(timeout time.Duration) ChooserWaiter
	PendingDialog() (Dialog, bool)
	ClearDialog()
	HTML(ctx context.Context) (string, error)
	CurrentURL() (string, error)
	Cookies(urls []string) ([]*http.Cookie, error)
	Acquire() (release func(), err error)
	Close() error
}

// IsTimeout reports whether err is a bounded wait elapsing — the expected
// negative outcome of a probe, as opposed to a protocol failure.
func IsTimeout(err error) bool {
	return errors.Is(err, session.ErrTimeout)
}

// sessionPage adapts *session.Session to the Page contract.
type sessionPage struct {
	s *session.Session
}

// BindSession wraps a live session for the pipeline.
func BindSession(s *session.Session) Page {
	return &sessionPage{s: s}
}

func (p *sessionPage) Navigate(ctx context.Context, url string) error {
	return p.s.Navigate(ctx, url)
}

func (p *sessionPage) Probe(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	el, err := p.s.Probe(ctx, selector, timeout)
	if err != nil {
		return nil, err
	}
	return el, nil
}

func (p *sessionPage) WaitURLPrefix(ctx context.Context, prefix string, timeout time.Duration) error {
	return p.s.WaitURLPrefix(ctx, prefix, timeout)
}

func (p *sessionPage) CaptureSnapshot(ctx context.Context) ([]ElementInfo, error) {
	sn, err := p.s.CaptureSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]ElementInfo, 0, sn.Len())
	for _, ref := range sn.Refs() {
		el, _ := sn.Get(ref)
		infos = append(infos, ElementInfo{
			Ref:     el.Ref(),
			Tag:     el.Tag(),
			Type:    el.Type(),
			Label:   el.Label(),
			Visible: el.Visible(),
		})
	}
	return infos, nil
}

func (p *sessionPage) Resolve(ref string) (Element, error) {
	el, err := p.s.Resolve(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	return el, nil
}

func (p *sessionPage) ArmFileChooser(timeout time.Duration) ChooserWaiter {
	return &chooserWaiter{w: p.s.ArmFileChooser(timeout)}
}

func (p *sessionPage) PendingDialog() (Dialog, bool) {
	d, ok := p.s.PendingDialog()
	if !ok {
		return nil, false
	}
	return d, true
}

func (p *sessionPage) ClearDialog() { p.s.ClearDialog() }

func (p *sessionPage) HTML(ctx context.Context) (string, error) { return p.s.HTML(ctx) }

func (p *sessionPage) CurrentURL() (string, error) { return p.s.CurrentURL() }

func (p *sessionPage) Cookies(urls []string) ([]*http.Cookie, error) { return p.s.Cookies(urls) }

func (p *sessionPage) Acquire() (func(), error) { return p.s.Acquire() }

func (p *sessionPage) Close() error { return p.s.Close() }

type chooserWaiter struct {
	w *session.FileChooserWaiter
}

func (c *chooserWaiter) Await(ctx context.Context) (FileChooser, error) {
	fc, err := c.w.Await(ctx)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

func (c *chooserWaiter) Cancel() { c.w.Cancel() }
