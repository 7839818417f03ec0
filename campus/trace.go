package campus

import "strings"

// SubmissionResult is what the host receives for every submission, success
// or not: the ordered trace of steps that completed, plus one error flag.
// Partial progress stays diagnosable without re-running the form.
type SubmissionResult struct {
	Trace   []string `json:"trace"`
	IsError bool     `json:"isError"`
}

// Text joins the trace into the multi-line report shape the transport
// layer returns.
func (r *SubmissionResult) Text() string {
	return strings.Join(r.Trace, "\n")
}

// trace accumulates step lines during one pipeline run. Append-only; the
// classifier freezes it into the final SubmissionResult.
type trace struct {
	lines []string
}

func (t *trace) add(line string) {
	t.lines = append(t.lines, line)
}

// classify freezes the trace into a result.
func (t *trace) classify(isError bool) *SubmissionResult {
	return &SubmissionResult{Trace: t.lines, IsError: isError}
}
