package campus

import (
	"encoding/json"
	"fmt"
)

// Target names one element by snapshot reference, with an optional
// human-readable label used only for reporting.
type Target struct {
	Ref   string
	Label string
}

// describe is the trace wording for a target: its label when supplied,
// otherwise the reference spelled out.
func (t Target) describe() string {
	if t.Label != "" {
		return t.Label
	}
	return fmt.Sprintf("element with reference %s", t.Ref)
}

// Operation is a sealed sum over the supported form actions. Each case
// carries only the fields valid for its action, so value-shape validation
// happens once, at decode time, instead of as a runtime check in the
// sequencer.
type Operation interface {
	Target() Target
	isOperation()
}

// TypeOp fills a text control with a string value.
type TypeOp struct {
	Tgt   Target
	Value string
}

// ClickOp clicks a control. No value.
type ClickOp struct {
	Tgt Target
}

// CheckOp drives a checkbox to checked. No value.
type CheckOp struct {
	Tgt Target
}

// UncheckOp drives a checkbox to unchecked. No value.
type UncheckOp struct {
	Tgt Target
}

// SelectOp selects one or more option values in a select control.
type SelectOp struct {
	Tgt    Target
	Values []string
}

// UploadOp supplies one or more file paths to the control's file picker.
type UploadOp struct {
	Tgt   Target
	Paths []string
}

func (o TypeOp) Target() Target    { return o.Tgt }
func (o ClickOp) Target() Target   { return o.Tgt }
func (o CheckOp) Target() Target   { return o.Tgt }
func (o UncheckOp) Target() Target { return o.Tgt }
func (o SelectOp) Target() Target  { return o.Tgt }
func (o UploadOp) Target() Target  { return o.Tgt }

func (TypeOp) isOperation()    {}
func (ClickOp) isOperation()   {}
func (CheckOp) isOperation()   {}
func (UncheckOp) isOperation() {}
func (SelectOp) isOperation()  {}
func (UploadOp) isOperation()  {}

// OperationRequest is the wire shape of one operation as received from the
// host. Value is either a string, an array of strings, or absent — which
// shapes are legal depends on Action.
type OperationRequest struct {
	Action string          `json:"action"`
	Ref    string          `json:"ref"`
	Value  json.RawMessage `json:"value,omitempty"`
	Label  string          `json:"label,omitempty"`
}

// ParseOperation validates one wire operation into its sum-type case.
// Shape violations are caller errors (ErrValidation), never page errors.
func ParseOperation(req OperationRequest) (Operation, error) {
	if req.Ref == "" {
		return nil, fmt.Errorf("%w: action %q: ref is required", ErrValidation, req.Action)
	}
	tgt := Target{Ref: req.Ref, Label: req.Label}

	switch req.Action {
	case "type":
		v, err := decodeString(req.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: action \"type\" requires a string value: %v", ErrValidation, err)
		}
		return TypeOp{Tgt: tgt, Value: v}, nil

	case "click", "check", "uncheck":
		if len(req.Value) > 0 && string(req.Value) != "null" {
			return nil, fmt.Errorf("%w: action %q takes no value", ErrValidation, req.Action)
		}
		switch req.Action {
		case "click":
			return ClickOp{Tgt: tgt}, nil
		case "check":
			return CheckOp{Tgt: tgt}, nil
		default:
			return UncheckOp{Tgt: tgt}, nil
		}

	case "select":
		vs, err := decodeStringOrSlice(req.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: action \"select\" requires a string or string array value: %v", ErrValidation, err)
		}
		return SelectOp{Tgt: tgt, Values: vs}, nil

	case "upload":
		vs, err := decodeStringOrSlice(req.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: action \"upload\" requires a path or path array value: %v", ErrValidation, err)
		}
		return UploadOp{Tgt: tgt, Paths: vs}, nil

	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidation, req.Action)
	}
}

// ParseOperations validates a whole request list. The first invalid
// operation fails the whole request before the page is touched.
func ParseOperations(reqs []OperationRequest) ([]Operation, error) {
	ops := make([]Operation, 0, len(reqs))
	for i, r := range reqs {
		op, err := ParseOperation(r)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i+1, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func decodeString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("value is absent")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("not a string")
	}
	return s, nil
}

// decodeStringOrSlice accepts a bare string as a single-element sequence.
func decodeStringOrSlice(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("value is absent")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}, nil
	}
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, fmt.Errorf("neither a string nor a string array")
	}
	if len(ss) == 0 {
		return nil, fmt.Errorf("empty array")
	}
	return ss, nil
}
