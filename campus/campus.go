// Package campus automates a campus learning platform that exposes no API:
// it authenticates through the platform's external identity provider,
// scrapes course/lecture/slide listings out of server-rendered HTML, and
// replays assignment-form submissions against a live browser tab.
//
// The two stateful cores are the login handshake detector (login.go) and
// the form submission pipeline (submit.go, upload.go, dialog.go). Both run
// against the Page contract (page.go) so they are testable without Chrome.
package campus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/microcosm-cc/bluemonday"
)

// AuditSink receives one record per tool invocation. Best-effort: sinks
// must never block or fail the request path.
type AuditSink interface {
	RecordInvocation(ctx context.Context, tool string, success bool, detail string)
}

// Service is the campus automation service: one lazily created browser
// session, the pipeline components, and the MCP tool surface.
type Service struct {
	cfg Config
	log *slog.Logger

	newPage func() (Page, error)

	mu   sync.Mutex
	page Page

	// lazily built content pipeline (content.go)
	sanitize *bluemonday.Policy
	md       *converter.Converter

	audit AuditSink
}

// Option configures a Service.
type Option func(*Service)

// WithAudit attaches an invocation audit sink.
func WithAudit(sink AuditSink) Option {
	return func(s *Service) { s.audit = sink }
}

// New creates the service. newPage is called at most once, on first use —
// Chrome stays down until a tool actually needs it.
func New(cfg Config, newPage func() (Page, error), opts ...Option) (*Service, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("campus: BaseURL is required")
	}
	cfg.defaults()

	s := &Service{
		cfg:     cfg,
		log:     cfg.Logger,
		newPage: newPage,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// currentPage returns the session page, creating it on first use.
func (s *Service) currentPage() (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page != nil {
		return s.page, nil
	}
	p, err := s.newPage()
	if err != nil {
		return nil, fmt.Errorf("campus: open session: %w", err)
	}
	s.page = p
	return p, nil
}

// Login drives the session to the authenticated courses page. Credentials
// come from the service configuration (process environment), never from
// the request; their absence fails before the browser is touched.
// Returns the state the handshake ended in.
func (s *Service) Login(ctx context.Context) (AuthState, error) {
	if s.cfg.Credentials.Username == "" || s.cfg.Credentials.Password == "" {
		return StateUnknown, fmt.Errorf("%w: set CAMPUS_USERNAME and CAMPUS_PASSWORD", ErrConfiguration)
	}

	page, err := s.currentPage()
	if err != nil {
		return StateUnknown, err
	}

	release, err := page.Acquire()
	if err != nil {
		return StateUnknown, err
	}
	defer release()

	det := NewLoginDetector(page, &s.cfg)
	if err := det.Run(ctx, s.cfg.Credentials); err != nil {
		return det.State(), err
	}

	// Land on the courses page so listing tools and snapshots start from a
	// known place.
	if err := page.Navigate(ctx, s.cfg.BaseURL+s.cfg.CoursesPath); err != nil {
		return det.State(), fmt.Errorf("%w: reach courses page: %v", ErrAuthentication, err)
	}

	s.log.Info("campus: login handshake complete", "state", det.State().String())
	return det.State(), nil
}

// Snapshot recaptures the current page's interactive elements and returns
// their references for the host to address in a subsequent submission.
func (s *Service) Snapshot(ctx context.Context) ([]ElementInfo, error) {
	page, err := s.currentPage()
	if err != nil {
		return nil, err
	}
	release, err := page.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return page.CaptureSnapshot(ctx)
}

// Close tears the session down.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil
	}
	err := s.page.Close()
	s.page = nil
	return err
}

func (s *Service) recordAudit(ctx context.Context, tool string, success bool, detail string) {
	if s.audit == nil {
		return
	}
	s.audit.RecordInvocation(ctx, tool, success, detail)
}
