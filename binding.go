package fieldsync

import (
	"log/slog"

	"fieldsync/internal/logger"
	"fieldsync/internal/metrics"
	"fieldsync/internal/utf16text"
)

// Options configures Attach. The zero value is usable.
type Options struct {
	// Name identifies the field in logs.
	Name string
	// Scheduler defers change checks until the host has finished applying
	// the triggering event. Nil runs checks immediately.
	Scheduler Scheduler
	// Mirror, if set, receives every text the binding writes to the control.
	Mirror Mirror
	Logger *slog.Logger
}

// Binding synchronizes one control with one shared document context.
type Binding struct {
	ctl   Control
	ctx   Context
	sched Scheduler
	mir   Mirror
	log   *slog.Logger

	// prev is the control's raw text right after the last synchronization.
	prev     string
	unsubs   []func()
	detached bool
}

// Attach writes the document's text into ctl and starts synchronizing the two.
// It fails with ErrUnsupportedDocumentType, before touching either side, if
// ctx does not provide text operations.
func Attach(ctl Control, ctx Context, opts Options) (*Binding, error) {
	if !ctx.ProvidesText() {
		return nil, ErrUnsupportedDocumentType
	}
	b := &Binding{
		ctl:   ctl,
		ctx:   ctx,
		sched: opts.Scheduler,
		mir:   opts.Mirror,
		log:   opts.Logger,
	}
	if b.sched == nil {
		b.sched = immediate{}
	}
	if b.log == nil {
		b.log = logger.WithField(opts.Name)
	}

	b.replaceText(ctx.Get(), nil)
	ctx.SetListener(b)

	check := func() { b.sched.Defer(b.Check) }
	for _, k := range Events {
		b.unsubs = append(b.unsubs, ctl.Subscribe(k, check))
	}
	metrics.IncAttachments()
	b.log.Debug("attached", "len", utf16text.Len(b.prev))
	return b, nil
}

// Detach stops synchronization. A check already deferred still runs; it
// finds nothing to do unless the text changed in between.
func (b *Binding) Detach() {
	if b.detached {
		return
	}
	b.detached = true
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	b.ctx.SetListener(nil)
	b.log.Debug("detached")
}

// Snapshot returns the control text recorded at the last synchronization.
func (b *Binding) Snapshot() string {
	return b.prev
}

// OnInsert applies a remote insertion to the control.
func (b *Binding) OnInsert(pos int, text string) {
	b.log.Debug("remote_insert", "pos", pos, "len", utf16text.Len(text))
	metrics.IncRemoteOps()
	n := utf16text.Len(text)
	prev := NormalizeNewlines(b.ctl.Value())
	b.replaceText(utf16text.Insert(prev, pos, text), func(c int) int {
		return TransformInsert(c, pos, n)
	})
}

// OnRemove applies a remote removal to the control.
func (b *Binding) OnRemove(pos, length int) {
	b.log.Debug("remote_remove", "pos", pos, "length", length)
	metrics.IncRemoteOps()
	prev := NormalizeNewlines(b.ctl.Value())
	b.replaceText(utf16text.Remove(prev, pos, length), func(c int) int {
		return TransformRemove(c, pos, length)
	})
}

// replaceText writes text into the control, carrying the selection through
// transform when it is non-nil. transform works in normalized offsets, so
// the control's raw selection is mapped across its line breaks both ways.
func (b *Binding) replaceText(text string, transform func(int) int) {
	var start, end int
	if transform != nil {
		n := utf16text.Len(text)
		raw := b.ctl.Value()
		s, e := b.ctl.Selection()
		start = utf16text.Clamp(transform(normalizedOffset(raw, s)), n)
		end = utf16text.Clamp(transform(normalizedOffset(raw, e)), n)
	}

	scrollTop := b.ctl.ScrollTop()
	b.ctl.SetValue(text)
	if b.mir != nil {
		b.mir.SetTextViaDiff(text)
	}
	// Read back so line endings the control re-inserts are part of the
	// snapshot.
	b.prev = b.ctl.Value()
	if b.ctl.ScrollTop() != scrollTop {
		b.ctl.SetScrollTop(scrollTop)
	}

	// An unfocused control's selection is left to drift.
	if transform != nil && b.ctl.HasFocus() {
		b.ctl.SetSelection(rawOffset(b.prev, start), rawOffset(b.prev, end))
	}
}

func isCRLF(units []uint16, i int) bool {
	return units[i] == '\r' && i+1 < len(units) && units[i+1] == '\n'
}

// normalizedOffset maps an offset into raw to the same place in
// NormalizeNewlines(raw). An offset between '\r' and '\n' maps to the line
// break.
func normalizedOffset(raw string, off int) int {
	units := utf16text.Encode(raw)
	off = utf16text.Clamp(off, len(units))
	n := off
	for i := 0; i < off; i++ {
		if isCRLF(units, i) {
			n--
		}
	}
	return n
}

// rawOffset maps an offset into NormalizeNewlines(raw) back into raw.
func rawOffset(raw string, off int) int {
	units := utf16text.Encode(raw)
	n := 0
	for i := 0; i < len(units); i++ {
		if n >= off {
			return i
		}
		if isCRLF(units, i) {
			i++
		}
		n++
	}
	return len(units)
}

// Check sends the user's edits since the last synchronization to the
// document. Bindings call it after every interaction event; hosts may call
// it directly after changing the control programmatically.
func (b *Binding) Check() {
	raw := b.ctl.Value()
	if raw == b.prev {
		metrics.IncDiffSkips()
		return
	}
	b.prev = raw
	d := ComputeDiff(b.ctx.Get(), NormalizeNewlines(raw))
	if d.Empty() {
		return
	}
	if d.Remove != nil {
		b.log.Debug("local_remove", "pos", d.Remove.Pos, "length", d.Remove.Length)
		metrics.IncLocalOps()
	}
	if d.Insert != nil {
		b.log.Debug("local_insert", "pos", d.Insert.Pos, "len", utf16text.Len(d.Insert.Text))
		metrics.IncLocalOps()
	}
	d.Emit(b.ctx)
}
