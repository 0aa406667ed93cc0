// Package field implements an in-memory editable text control with the
// behaviour of a browser textarea: editing keys fire interaction events
// before and after the text changes, programmatic assignment moves the caret
// to the end and resets scrolling, and platform line endings may be
// re-inserted on assignment.
package field

import (
	"strings"

	"github.com/rivo/uniseg"

	"fieldsync"
	"fieldsync/internal/utf16text"
)

type Options struct {
	// CRLF stores line breaks as "\r\n", as controls on some platforms do.
	CRLF bool
	// Focused gives the field input focus from the start.
	Focused bool
}

type handler struct {
	fn func()
}

// Field is a single editable text field. Offsets are UTF-16 code units into
// the raw value.
type Field struct {
	value     string
	selStart  int
	selEnd    int
	scrollTop int
	focused   bool
	crlf      bool

	handlers map[fieldsync.EventKind][]*handler
}

var _ fieldsync.Control = (*Field)(nil)

func New(text string, opt Options) *Field {
	f := &Field{
		crlf:     opt.CRLF,
		focused:  opt.Focused,
		handlers: make(map[fieldsync.EventKind][]*handler),
	}
	f.value = f.platform(text)
	return f
}

// platform converts text to the field's line-ending convention.
func (f *Field) platform(s string) string {
	if !f.crlf {
		return s
	}
	return strings.ReplaceAll(fieldsync.NormalizeNewlines(s), "\n", "\r\n")
}

func (f *Field) Value() string { return f.value }

// SetValue replaces the text without firing events. Like a browser control,
// the caret moves to the end and the view scrolls back to the top.
func (f *Field) SetValue(s string) {
	f.value = f.platform(s)
	n := utf16text.Len(f.value)
	f.selStart, f.selEnd = n, n
	f.scrollTop = 0
}

func (f *Field) Selection() (start, end int) { return f.selStart, f.selEnd }

func (f *Field) SetSelection(start, end int) {
	n := utf16text.Len(f.value)
	start, end = utf16text.Clamp(start, n), utf16text.Clamp(end, n)
	if end < start {
		start, end = end, start
	}
	f.selStart, f.selEnd = start, end
}

func (f *Field) ScrollTop() int { return f.scrollTop }

func (f *Field) SetScrollTop(top int) {
	f.scrollTop = utf16text.Clamp(top, len(f.Lines())-1)
}

func (f *Field) HasFocus() bool { return f.focused }

func (f *Field) Focus() { f.focused = true }

func (f *Field) Blur() { f.focused = false }

func (f *Field) Subscribe(k fieldsync.EventKind, fn func()) func() {
	h := &handler{fn: fn}
	f.handlers[k] = append(f.handlers[k], h)
	return func() {
		hs := f.handlers[k]
		for i, x := range hs {
			if x == h {
				f.handlers[k] = append(hs[:i:i], hs[i+1:]...)
				return
			}
		}
	}
}

// Subscribers returns the number of handlers registered for k.
func (f *Field) Subscribers(k fieldsync.EventKind) int {
	return len(f.handlers[k])
}

func (f *Field) fire(k fieldsync.EventKind) {
	for _, h := range append([]*handler(nil), f.handlers[k]...) {
		h.fn()
	}
}

// Lines splits the value at line breaks, without the breaks.
func (f *Field) Lines() []string {
	return strings.Split(fieldsync.NormalizeNewlines(f.value), "\n")
}

func (f *Field) replaceSelection(text string) {
	f.value = utf16text.Insert(utf16text.Remove(f.value, f.selStart, f.selEnd-f.selStart), f.selStart, text)
	caret := f.selStart + utf16text.Len(text)
	f.selStart, f.selEnd = caret, caret
}

// Type replaces the selection with text as if typed.
func (f *Field) Type(text string) {
	f.fire(fieldsync.EventKeyDown)
	f.replaceSelection(f.platform(text))
	f.fire(fieldsync.EventTextInput)
	f.fire(fieldsync.EventKeyUp)
}

// Backspace deletes the selection, or the grapheme before the caret.
func (f *Field) Backspace() {
	f.fire(fieldsync.EventKeyDown)
	if f.selStart == f.selEnd {
		f.selStart = f.prevBoundary(f.selStart)
	}
	f.replaceSelection("")
	f.fire(fieldsync.EventKeyUp)
}

// Delete deletes the selection, or the grapheme after the caret.
func (f *Field) Delete() {
	f.fire(fieldsync.EventKeyDown)
	if f.selStart == f.selEnd {
		f.selEnd = f.nextBoundary(f.selEnd)
	}
	f.replaceSelection("")
	f.fire(fieldsync.EventKeyUp)
}

// Cut removes the selection and returns it.
func (f *Field) Cut() string {
	f.fire(fieldsync.EventCut)
	cut := utf16text.Slice(f.value, f.selStart, f.selEnd)
	f.replaceSelection("")
	return cut
}

// Paste replaces the selection with text.
func (f *Field) Paste(text string) {
	f.fire(fieldsync.EventPaste)
	f.replaceSelection(f.platform(text))
}

// Selected returns the selected text.
func (f *Field) Selected() string {
	return utf16text.Slice(f.value, f.selStart, f.selEnd)
}

// Select sets the selection as a pointer drag would.
func (f *Field) Select(start, end int) {
	f.SetSelection(start, end)
	f.fire(fieldsync.EventSelect)
}

// SelectAll selects the whole value.
func (f *Field) SelectAll() {
	f.Select(0, utf16text.Len(f.value))
}

// MoveLeft moves the caret one grapheme left, collapsing any selection.
func (f *Field) MoveLeft() {
	f.fire(fieldsync.EventKeyDown)
	c := f.selStart
	if f.selStart == f.selEnd {
		c = f.prevBoundary(c)
	}
	f.selStart, f.selEnd = c, c
	f.fire(fieldsync.EventKeyUp)
}

// MoveRight moves the caret one grapheme right, collapsing any selection.
func (f *Field) MoveRight() {
	f.fire(fieldsync.EventKeyDown)
	c := f.selEnd
	if f.selStart == f.selEnd {
		c = f.nextBoundary(c)
	}
	f.selStart, f.selEnd = c, c
	f.fire(fieldsync.EventKeyUp)
}

func (f *Field) prevBoundary(pos int) int {
	prefix := utf16text.Slice(f.value, 0, pos)
	last := ""
	g := uniseg.NewGraphemes(prefix)
	for g.Next() {
		last = g.Str()
	}
	return utf16text.Len(prefix) - utf16text.Len(last)
}

func (f *Field) nextBoundary(pos int) int {
	suffix := utf16text.Slice(f.value, pos, utf16text.Len(f.value))
	cluster, _, _, _ := uniseg.FirstGraphemeClusterInString(suffix, -1)
	return pos + utf16text.Len(cluster)
}

// Caret returns the line and UTF-16 column of the selection end.
func (f *Field) Caret() (line, col int) {
	before := fieldsync.NormalizeNewlines(utf16text.Slice(f.value, 0, f.selEnd))
	line = strings.Count(before, "\n")
	if i := strings.LastIndexByte(before, '\n'); i >= 0 {
		before = before[i+1:]
	}
	return line, utf16text.Len(before)
}
