package session

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Ref is an opaque token identifying one element within a specific Snapshot.
type Ref string

// Snapshot is a point-in-time capture of the page's interactive elements,
// each addressable by an opaque reference. Element handles stay live until
// the page navigates; after that the whole snapshot is stale and the
// session drops it.
type Snapshot struct {
	ID    string
	order []Ref
	refs  map[Ref]*Element
}

// Refs returns the snapshot's references in capture order.
func (sn *Snapshot) Refs() []Ref { return sn.order }

// Get returns the element for ref.
func (sn *Snapshot) Get(ref Ref) (*Element, bool) {
	el, ok := sn.refs[ref]
	return el, ok
}

// Len returns the number of captured elements.
func (sn *Snapshot) Len() int { return len(sn.order) }

// Element is one captured element handle plus its describing metadata.
type Element struct {
	ref     Ref
	label   string
	tag     string
	typ     string
	visible bool
	handle  *rod.Element
	page    *rod.Page
}

// Ref returns the element's reference token.
func (e *Element) Ref() string { return string(e.ref) }

// Label returns the human-readable label captured with the element
// (aria-label, associated <label>, visible text, placeholder or name,
// whichever was found first). May be empty.
func (e *Element) Label() string { return e.label }

// Tag returns the lowercase tag name ("input", "button", ...).
func (e *Element) Tag() string { return e.tag }

// Type returns the type attribute, if any ("checkbox", "file", ...).
func (e *Element) Type() string { return e.typ }

// Visible reports whether the element was visible at capture time.
func (e *Element) Visible() bool { return e.visible }

// interactiveSelector lists what a snapshot captures. Fixed: the platform's
// forms are plain HTML controls, no custom widget framework.
const interactiveSelector = `a[href], button, input, select, textarea, [role="button"]`

// describeJS extracts the metadata stored alongside each captured handle.
const describeJS = `() => {
	const el = this;
	const rect = el.getBoundingClientRect();
	const style = getComputedStyle(el);
	const visible = !!(rect.width || rect.height) && style.visibility !== 'hidden' && style.display !== 'none';
	let label = el.getAttribute('aria-label') || '';
	if (!label && el.labels && el.labels.length) label = el.labels[0].textContent || '';
	if (!label) label = (el.innerText || '').trim();
	if (!label) label = el.getAttribute('placeholder') || el.getAttribute('name') || el.getAttribute('title') || '';
	label = label.trim().replace(/\s+/g, ' ').slice(0, 80);
	return {
		tag: el.tagName.toLowerCase(),
		type: el.getAttribute('type') || '',
		label: label,
		visible: visible,
	};
}`

// CaptureSnapshot enumerates the page's interactive elements and assigns
// fresh reference tokens (e1, e2, ...). The new snapshot replaces any
// previous one.
func (s *Session) CaptureSnapshot(ctx context.Context) (*Snapshot, error) {
	els, err := s.page.Context(ctx).Elements(interactiveSelector)
	if err != nil {
		return nil, fmt.Errorf("session: capture: %w", err)
	}

	s.mu.Lock()
	s.snapSeq++
	seq := s.snapSeq
	s.mu.Unlock()

	sn := &Snapshot{
		ID:   fmt.Sprintf("s%d", seq),
		refs: make(map[Ref]*Element, len(els)),
	}

	for i, h := range els {
		ref := Ref(fmt.Sprintf("e%d", i+1))
		el := &Element{ref: ref, handle: h, page: s.page}

		res, err := h.Context(ctx).Eval(describeJS)
		if err != nil {
			// Detached mid-capture (e.g. a widget re-rendered). Keep the
			// handle anyway; resolution will fail loudly if it is used.
			s.cfg.Logger.Debug("session: describe element failed", "ref", string(ref), "error", err)
		} else {
			el.tag = res.Value.Get("tag").Str()
			el.typ = res.Value.Get("type").Str()
			el.label = res.Value.Get("label").Str()
			el.visible = res.Value.Get("visible").Bool()
		}

		sn.refs[ref] = el
		sn.order = append(sn.order, ref)
	}

	s.mu.Lock()
	s.snapshot = sn
	s.mu.Unlock()

	s.cfg.Logger.Debug("session: snapshot captured", "id", sn.ID, "elements", sn.Len())
	return sn, nil
}

// Snapshot returns the most recent snapshot, if one exists.
func (s *Session) Snapshot() (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.snapshot != nil
}

// Resolve maps a reference from the most recent snapshot to its element.
func (s *Session) Resolve(ref string) (*Element, error) {
	s.mu.Lock()
	sn := s.snapshot
	s.mu.Unlock()

	if sn == nil {
		return nil, ErrNoSnapshot
	}
	el, ok := sn.Get(Ref(ref))
	if !ok {
		return nil, fmt.Errorf("%w: %q (snapshot %s)", ErrUnresolvableRef, ref, sn.ID)
	}
	return el, nil
}

// --- element interactions ---

// Fill replaces the element's current text with value.
func (e *Element) Fill(ctx context.Context, value string) error {
	h := e.handle.Context(ctx)
	if err := h.SelectAllText(); err != nil {
		return fmt.Errorf("session: select text in %s: %w", e.ref, err)
	}
	if err := h.Input(value); err != nil {
		return fmt.Errorf("session: input into %s: %w", e.ref, err)
	}
	return nil
}

// Click scrolls the element into view and clicks it.
func (e *Element) Click(ctx context.Context) error {
	h := e.handle.Context(ctx)
	if err := h.ScrollIntoView(); err != nil {
		return fmt.Errorf("session: scroll to %s: %w", e.ref, err)
	}
	if err := h.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("session: click %s: %w", e.ref, err)
	}
	return nil
}

// SetChecked drives a checkbox or radio to the wanted state. Clicking only
// when the state differs keeps the operation idempotent at the DOM level.
func (e *Element) SetChecked(ctx context.Context, want bool) error {
	h := e.handle.Context(ctx)
	cur, err := h.Property("checked")
	if err != nil {
		return fmt.Errorf("session: read checked of %s: %w", e.ref, err)
	}
	if cur.Bool() == want {
		return nil
	}
	return e.Click(ctx)
}

const selectJS = `(values) => {
	const el = this;
	if (el.tagName.toLowerCase() !== 'select') throw new Error('not a select element');
	const wanted = new Set(values);
	let matched = 0;
	for (const opt of el.options) {
		const hit = wanted.has(opt.value) || wanted.has(opt.textContent.trim());
		if (hit && !el.multiple && matched > 0) { continue; }
		opt.selected = hit;
		if (hit) matched++;
	}
	if (matched === 0) throw new Error('no option matched: ' + values.join(', '));
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return matched;
}`

// SelectValues selects the options whose value or visible text matches one
// of values, then fires input/change so the page's listeners run.
func (e *Element) SelectValues(ctx context.Context, values []string) error {
	if _, err := e.handle.Context(ctx).Eval(selectJS, values); err != nil {
		return fmt.Errorf("session: select in %s: %w", e.ref, err)
	}
	return nil
}
