package campus

import (
	"context"
	"fmt"
	"strings"
)

// SubmitRequest is one form submission: an ordered (possibly empty) list of
// input operations plus the mandatory terminal submit target.
type SubmitRequest struct {
	Operations []Operation
	Submit     Target
}

// SubmitForm replays the operations in list order against the current
// snapshot, clicks the submit target, then arbitrates the confirmation
// dialog. It never returns a Go error: every failure mode is folded into
// the result so the transport layer always sees a structured outcome.
//
// Error policy: the first failing operation aborts the remainder — the
// submit click is never reached after an earlier failure — and the partial
// trace is returned as an error result.
func (s *Service) SubmitForm(ctx context.Context, req SubmitRequest) *SubmissionResult {
	tr := &trace{}

	if req.Submit.Ref == "" {
		tr.add("Submission rejected: submit button reference is required")
		return tr.classify(true)
	}

	page, err := s.currentPage()
	if err != nil {
		tr.add(fmt.Sprintf("Submission rejected: %v", err))
		return tr.classify(true)
	}

	release, err := page.Acquire()
	if err != nil {
		tr.add(fmt.Sprintf("Submission rejected: %v", err))
		return tr.classify(true)
	}
	defer release()

	for i, op := range req.Operations {
		line, err := s.applyOperation(ctx, page, op)
		if err != nil {
			s.log.Warn("submit: operation failed, aborting sequence",
				"index", i+1, "total", len(req.Operations), "error", err)
			tr.add(fmt.Sprintf("Failed to %s: %v", describeAction(op), err))
			return tr.classify(true)
		}
		tr.add(line)
	}

	// Terminal action: the submit click.
	submitEl, err := page.Resolve(req.Submit.Ref)
	if err != nil {
		tr.add(fmt.Sprintf("Failed to click %s: %v", req.Submit.describe(), err))
		return tr.classify(true)
	}
	if err := submitEl.Click(ctx); err != nil {
		tr.add(fmt.Sprintf("Failed to click %s: %v", req.Submit.describe(), fmt.Errorf("%w: %v", ErrInteraction, err)))
		return tr.classify(true)
	}
	tr.add(fmt.Sprintf("Clicked %s", submitDescribe(submitEl, req.Submit)))

	// Post-submit: the confirmation dialog decides the verdict.
	line, err := s.arbitrateDialog(ctx, page)
	tr.add(line)
	if err != nil {
		return tr.classify(true)
	}
	return tr.classify(false)
}

// applyOperation dispatches one operation and returns its trace line.
func (s *Service) applyOperation(ctx context.Context, page Page, op Operation) (string, error) {
	el, err := page.Resolve(op.Target().Ref)
	if err != nil {
		return "", err
	}
	desc := operandDescribe(el, op.Target())

	switch o := op.(type) {
	case TypeOp:
		if err := el.Fill(ctx, o.Value); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInteraction, err)
		}
		return fmt.Sprintf("Typed %q into %s", o.Value, desc), nil

	case ClickOp:
		if err := el.Click(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInteraction, err)
		}
		return fmt.Sprintf("Clicked %s", desc), nil

	case CheckOp:
		if err := el.SetChecked(ctx, true); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInteraction, err)
		}
		return fmt.Sprintf("Checked %s", desc), nil

	case UncheckOp:
		if err := el.SetChecked(ctx, false); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInteraction, err)
		}
		return fmt.Sprintf("Unchecked %s", desc), nil

	case SelectOp:
		if err := el.SelectValues(ctx, o.Values); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInteraction, err)
		}
		return fmt.Sprintf("Selected [%s] in %s", strings.Join(o.Values, ", "), desc), nil

	case UploadOp:
		if err := s.performUpload(ctx, page, el, o); err != nil {
			return "", err
		}
		return fmt.Sprintf("Uploaded %d file(s) via %s", len(o.Paths), desc), nil

	default:
		return "", fmt.Errorf("%w: unhandled operation %T", ErrValidation, op)
	}
}

// describeAction names an operation for failure lines.
func describeAction(op Operation) string {
	desc := op.Target().describe()
	switch o := op.(type) {
	case TypeOp:
		return fmt.Sprintf("type %q into %s", o.Value, desc)
	case ClickOp:
		return "click " + desc
	case CheckOp:
		return "check " + desc
	case UncheckOp:
		return "uncheck " + desc
	case SelectOp:
		return fmt.Sprintf("select [%s] in %s", strings.Join(o.Values, ", "), desc)
	case UploadOp:
		return fmt.Sprintf("upload %d file(s) via %s", len(o.Paths), desc)
	default:
		return "apply operation on " + desc
	}
}

// operandDescribe prefers the caller-supplied label, then the element's own
// captured label, then the reference spelled out.
func operandDescribe(el Element, tgt Target) string {
	if tgt.Label != "" {
		return tgt.Label
	}
	if el.Label() != "" {
		return el.Label()
	}
	return fmt.Sprintf("element with reference %s", tgt.Ref)
}

func submitDescribe(el Element, tgt Target) string {
	return operandDescribe(el, tgt)
}
