package campus

import (
	"context"
	"fmt"
	"path/filepath"
)

// performUpload realises an upload operation. The control's effect is not a
// direct API call: clicking it makes the browser open a file picker, which
// surfaces as an out-of-band event. The listener is armed BEFORE the click —
// some engines fire the event synchronously with the click, and arming
// after would risk missing it.
func (s *Service) performUpload(ctx context.Context, page Page, el Element, op UploadOp) error {
	for _, p := range op.Paths {
		// Permissive on purpose: relative paths resolve against the browser
		// process's cwd, which is usually wrong but occasionally intended.
		if !filepath.IsAbs(p) {
			s.log.Warn("upload: path is not absolute", "path", p, "ref", op.Tgt.Ref)
		}
	}

	waiter := page.ArmFileChooser(s.cfg.Timeouts.FileChooser)

	if err := el.Click(ctx); err != nil {
		waiter.Cancel()
		return fmt.Errorf("%w: click upload control: %v", ErrInteraction, err)
	}

	chooser, err := waiter.Await(ctx)
	if err != nil {
		// Deliberately distinct from a click failure: the click landed but
		// the picker never opened (wrong element, or the page ate the event).
		return err
	}

	if err := chooser.SetFiles(ctx, op.Paths); err != nil {
		return fmt.Errorf("%w: supply files to chooser: %v", ErrInteraction, err)
	}
	return nil
}
