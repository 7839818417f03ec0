// Package session wraps one Rod page into the stateful handle the campus
// pipeline works against: the most recent element snapshot with its opaque
// references, the pending-dialog register, and the bounded waits (selector
// probes, URL return, file chooser) the pipeline builds on.
//
// One Session means one tab and one logical flow of control. Concurrent
// pipeline runs against the same Session are rejected, not queued: callers
// must Acquire the session first.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Config configures a Session.
type Config struct {
	// NavigateTimeout bounds Navigate plus the load event. Default: 30s.
	NavigateTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigateTimeout <= 0 {
		c.NavigateTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session owns one page, its most recent snapshot, and the dialog register.
type Session struct {
	cfg  Config
	page *rod.Page

	mu       sync.Mutex
	snapshot *Snapshot
	snapSeq  int

	dialogs *dialogRegister

	// busy serialises pipeline runs. Held via Acquire, never internally.
	busy chan struct{}

	stopPump context.CancelFunc
}

// New wraps an already-created page. The dialog pump starts immediately so
// a dialog raised at any point lands in the register.
func New(page *rod.Page, cfg Config) *Session {
	cfg.defaults()
	s := &Session{
		cfg:     cfg,
		page:    page,
		dialogs: newDialogRegister(cfg.Logger),
		busy:    make(chan struct{}, 1),
	}
	s.startDialogPump()
	return s
}

// Acquire claims the session for one pipeline run. It fails immediately
// with ErrBusy when another run holds it; it never queues.
func (s *Session) Acquire() (release func(), err error) {
	select {
	case s.busy <- struct{}{}:
		return func() { <-s.busy }, nil
	default:
		return nil, ErrBusy
	}
}

// Navigate drives the page to url and waits for the load event. Any
// previously captured snapshot becomes stale and is dropped.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigateTimeout)
	defer cancel()

	if err := s.page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("session: navigate %s: %w", url, err)
	}
	if err := s.page.Context(navCtx).WaitLoad(); err != nil {
		s.cfg.Logger.Warn("session: wait load timeout", "url", url, "error", err)
	}
	return nil
}

// Probe waits up to timeout for selector to match a visible element.
// A miss is an expected outcome for the login decision tree, so it comes
// back as ErrTimeout, distinguishable from protocol failures.
func (s *Session) Probe(ctx context.Context, selector string, timeout time.Duration) (*Element, error) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := s.page.Context(probeCtx).Element(selector)
	if err != nil {
		if probeCtx.Err() != nil {
			return nil, fmt.Errorf("%w: selector %q not found within %s", ErrTimeout, selector, timeout)
		}
		return nil, fmt.Errorf("session: probe %q: %w", selector, err)
	}
	if err := el.Context(probeCtx).WaitVisible(); err != nil {
		return nil, fmt.Errorf("%w: selector %q not visible within %s", ErrTimeout, selector, timeout)
	}
	return &Element{ref: Ref(selector), label: "", handle: el, page: s.page}, nil
}

// WaitURLPrefix polls the page URL until it starts with prefix. Used for the
// identity-provider round trip, where the browser bounces through several
// redirect hosts before landing back on the platform domain.
func (s *Session) WaitURLPrefix(ctx context.Context, prefix string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if u, err := s.CurrentURL(); err == nil && strings.HasPrefix(u, prefix) {
			return nil
		}
		if time.Now().After(deadline) {
			u, _ := s.CurrentURL()
			return fmt.Errorf("%w: url did not return to %s within %s (still on %s)", ErrTimeout, prefix, timeout, u)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CurrentURL returns the page's current URL.
func (s *Session) CurrentURL() (string, error) {
	info, err := s.page.Info()
	if err != nil {
		return "", fmt.Errorf("session: page info: %w", err)
	}
	return info.URL, nil
}

// HTML returns the current document's outer HTML.
func (s *Session) HTML(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("session: html: %w", err)
	}
	return res.Value.Str(), nil
}

// Cookies returns the page's cookies for urls, for side-channel downloads
// that must ride the authenticated session.
func (s *Session) Cookies(urls []string) ([]*http.Cookie, error) {
	cookies, err := s.page.Cookies(urls)
	if err != nil {
		return nil, fmt.Errorf("session: cookies: %w", err)
	}
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Domain: c.Domain})
	}
	return out, nil
}

// PendingDialog returns the registered dialog, if any, without consuming it.
func (s *Session) PendingDialog() (*Dialog, bool) {
	return s.dialogs.peek()
}

// ClearDialog empties the register. Safe to call whether or not a dialog
// was registered; a stale dialog must never leak into a later operation.
func (s *Session) ClearDialog() {
	s.dialogs.clear()
}

// Close stops the dialog pump and closes the tab.
func (s *Session) Close() error {
	if s.stopPump != nil {
		s.stopPump()
	}
	if s.page != nil {
		return s.page.Close()
	}
	return nil
}

func (s *Session) startDialogPump() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopPump = cancel

	// Page domain events (dialog opening, file chooser) need the domain on.
	proto.PageEnable{}.Call(s.page)

	go func() {
		wait := s.page.Context(ctx).EachEvent(func(e *proto.PageJavascriptDialogOpening) {
			d := &Dialog{
				message: e.Message,
				kind:    string(e.Type),
				resolve: func(accept bool) error {
					return proto.PageHandleJavaScriptDialog{Accept: accept}.Call(s.page)
				},
			}
			if !s.dialogs.offer(d) {
				// Register occupied: keep the first dialog, resolve the
				// newcomer right away so the page is not left blocked.
				s.cfg.Logger.Warn("session: dialog arrived while one pending, dismissing newcomer",
					"message", e.Message, "kind", string(e.Type))
				if err := d.resolve(false); err != nil {
					s.cfg.Logger.Error("session: dismiss extra dialog", "error", err)
				}
			}
		})
		wait()
	}()
}
