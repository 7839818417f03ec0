package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

// ErrNoFileChooser is returned when the armed wait elapses without the
// page opening a file chooser. Distinct from a click failure: the click
// landed, the picker just never showed up.
var ErrNoFileChooser = fmt.Errorf("file chooser did not appear: %w", ErrTimeout)

// FileChooserWaiter is a one-shot listener for the browser's file-chooser
// event. It must be armed BEFORE the click that triggers the chooser: some
// engines fire the event synchronously with the click, and arming after
// would miss it.
type FileChooserWaiter struct {
	s       *Session
	timeout time.Duration
	evCh    chan *proto.PageFileChooserOpened
	armCtx  context.Context
	cancel  context.CancelFunc
}

// ArmFileChooser enables file-chooser interception and starts listening.
// The returned waiter is valid for one chooser event.
func (s *Session) ArmFileChooser(timeout time.Duration) *FileChooserWaiter {
	armCtx, cancel := context.WithCancel(context.Background())
	w := &FileChooserWaiter{
		s:       s,
		timeout: timeout,
		evCh:    make(chan *proto.PageFileChooserOpened, 1),
		armCtx:  armCtx,
		cancel:  cancel,
	}

	if err := (proto.PageSetInterceptFileChooserDialog{Enabled: true}).Call(s.page); err != nil {
		s.cfg.Logger.Warn("session: enable file chooser interception", "error", err)
	}

	go func() {
		wait := s.page.Context(armCtx).EachEvent(func(e *proto.PageFileChooserOpened) bool {
			select {
			case w.evCh <- e:
			default:
			}
			return true
		})
		wait()
	}()

	return w
}

// Await blocks until the chooser event fires or the armed timeout elapses.
func (w *FileChooserWaiter) Await(ctx context.Context) (*FileChooser, error) {
	defer w.disarm()

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	select {
	case e := <-w.evCh:
		return &FileChooser{s: w.s, ev: e}, nil
	case <-timer.C:
		return nil, ErrNoFileChooser
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel disarms the waiter without awaiting the event, for callers that
// abort between arming and the triggering click. Safe to call after Await.
func (w *FileChooserWaiter) Cancel() { w.disarm() }

func (w *FileChooserWaiter) disarm() {
	w.cancel()
	if err := (proto.PageSetInterceptFileChooserDialog{Enabled: false}).Call(w.s.page); err != nil {
		w.s.cfg.Logger.Debug("session: disable file chooser interception", "error", err)
	}
}

// FileChooser is an intercepted file-chooser event awaiting its file set.
type FileChooser struct {
	s  *Session
	ev *proto.PageFileChooserOpened
}

// SetFiles supplies paths to the chooser, in order.
func (c *FileChooser) SetFiles(ctx context.Context, paths []string) error {
	err := proto.DOMSetFileInputFiles{
		Files:         paths,
		BackendNodeID: c.ev.BackendNodeID,
	}.Call(c.s.page.Context(ctx))
	if err != nil {
		return fmt.Errorf("session: set chooser files: %w", err)
	}
	return nil
}
