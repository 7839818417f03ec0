package session

import (
	"log/slog"
	"sync"
)

// Dialog is one browser-raised javascript dialog (alert, confirm, prompt)
// awaiting resolution. It is consumed exactly once: a second Accept or
// Dismiss fails with ErrDialogConsumed.
type Dialog struct {
	message string
	kind    string

	mu       sync.Mutex
	consumed bool
	resolve  func(accept bool) error
}

// Message returns the dialog's text as raised by the page.
func (d *Dialog) Message() string { return d.message }

// Kind returns the dialog type ("alert", "confirm", "prompt", "beforeunload").
func (d *Dialog) Kind() string { return d.kind }

// Accept resolves the dialog positively.
func (d *Dialog) Accept() error { return d.consume(true) }

// Dismiss resolves the dialog negatively.
func (d *Dialog) Dismiss() error { return d.consume(false) }

func (d *Dialog) consume(accept bool) error {
	d.mu.Lock()
	if d.consumed {
		d.mu.Unlock()
		return ErrDialogConsumed
	}
	d.consumed = true
	d.mu.Unlock()
	return d.resolve(accept)
}

// dialogRegister is a capacity-one slot between the page's asynchronous
// event stream (producer) and the dialog arbiter (consumer). A second
// dialog arriving while one is pending is refused: offer returns false and
// the caller decides what to do with the newcomer. This makes the
// "dialog while one pending" case a defined behaviour instead of an
// accidental overwrite.
type dialogRegister struct {
	mu   sync.Mutex
	slot *Dialog
	log  *slog.Logger
}

func newDialogRegister(log *slog.Logger) *dialogRegister {
	return &dialogRegister{log: log}
}

// offer places d in the slot. Returns false if the slot is occupied.
func (r *dialogRegister) offer(d *Dialog) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slot != nil {
		return false
	}
	r.slot = d
	r.log.Debug("session: dialog registered", "kind", d.kind, "message", d.message)
	return true
}

// peek returns the pending dialog without clearing the slot.
func (r *dialogRegister) peek() (*Dialog, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slot, r.slot != nil
}

// clear empties the slot.
func (r *dialogRegister) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slot = nil
}
