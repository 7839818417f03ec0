package campus

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// arbitrateDialog decides the fate of whatever dialog the submit click
// raised. It waits out a short grace period first — the dialog event is
// asynchronous and may land in the register a moment after the click
// returns — then matches the message against the accepted confirmation
// phrases (case-sensitive substring, one phrase per supported locale).
//
// No dialog is itself a failure: the confirmation dialog is the platform's
// only acknowledgment that the submission was recorded server-side.
// The register is always cleared, whatever the outcome, so a stale dialog
// can never leak into a later run.
func (s *Service) arbitrateDialog(ctx context.Context, page Page) (string, error) {
	defer page.ClearDialog()

	if err := sleepCtx(ctx, s.cfg.Timeouts.DialogGrace); err != nil {
		return fmt.Sprintf("Dialog handling aborted: %v", err), err
	}

	d, ok := page.PendingDialog()
	if !ok {
		s.log.Warn("submit: no confirmation dialog after grace period")
		return "No confirmation dialog appeared after submit", ErrConfirmationAbsent
	}

	msg := d.Message()
	if phrase, ok := s.matchAcceptedPhrase(msg); ok {
		if err := d.Accept(); err != nil {
			return fmt.Sprintf("Failed to accept dialog: %v", err), fmt.Errorf("%w: accept: %v", ErrInteraction, err)
		}
		s.log.Info("submit: confirmation dialog accepted", "phrase", phrase)
		return "Dialog accepted automatically", nil
	}

	// Unexpected text: dismiss rather than accept, and keep the raw message
	// in the trace for diagnostics.
	if err := d.Dismiss(); err != nil {
		return fmt.Sprintf("Failed to dismiss dialog: %v", err), fmt.Errorf("%w: dismiss: %v", ErrInteraction, err)
	}
	s.log.Warn("submit: dialog text did not match accepted phrases", "message", msg)
	return fmt.Sprintf("Dialog dismissed: unexpected message %q", msg),
		fmt.Errorf("%w: %q", ErrConfirmationMismatch, msg)
}

func (s *Service) matchAcceptedPhrase(msg string) (string, bool) {
	for _, phrase := range s.cfg.AcceptedPhrases {
		if strings.Contains(msg, phrase) {
			return phrase, true
		}
	}
	return "", false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
