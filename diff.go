package fieldsync

import (
	"strings"

	"fieldsync/internal/utf16text"
)

// Removal removes Length code units at Pos.
type Removal struct {
	Pos    int
	Length int
}

// Insertion inserts Text at Pos.
type Insertion struct {
	Pos  int
	Text string
}

// Diff is the edit between two texts: an optional removal followed by an
// optional insertion at the same position.
type Diff struct {
	Remove *Removal
	Insert *Insertion
}

// Empty reports whether d changes nothing.
func (d Diff) Empty() bool {
	return d.Remove == nil && d.Insert == nil
}

// Apply returns s with d applied.
func (d Diff) Apply(s string) string {
	if d.Remove != nil {
		s = utf16text.Remove(s, d.Remove.Pos, d.Remove.Length)
	}
	if d.Insert != nil {
		s = utf16text.Insert(s, d.Insert.Pos, d.Insert.Text)
	}
	return s
}

// Emit sends d to ctx, removal first.
func (d Diff) Emit(ctx Context) {
	if d.Remove != nil {
		ctx.Remove(d.Remove.Pos, d.Remove.Length)
	}
	if d.Insert != nil {
		ctx.Insert(d.Insert.Pos, d.Insert.Text)
	}
}

// ComputeDiff returns the edit turning oldText into newText, found by
// scanning in from both ends to isolate the changed range.
//
// The result is minimal only when the two texts differ by one contiguous
// change, which is what typing, deleting, cutting or pasting over a single
// selection produces. It is not a general diff: two separate changes come
// back as one removal and insertion spanning both.
func ComputeDiff(oldText, newText string) Diff {
	if oldText == newText {
		return Diff{}
	}
	a, b := utf16text.Encode(oldText), utf16text.Encode(newText)

	start := 0
	for start < len(a) && start < len(b) && a[start] == b[start] {
		start++
	}
	if start > 0 && utf16text.IsHighSurrogate(a[start-1]) {
		start--
	}

	// The bound is checked before comparing so the suffix never overlaps
	// the prefix and never indexes below zero.
	end := 0
	for start+end < len(a) && start+end < len(b) && a[len(a)-1-end] == b[len(b)-1-end] {
		end++
	}
	if end > 0 && utf16text.IsLowSurrogate(a[len(a)-end]) {
		end--
	}

	var d Diff
	if len(a) != start+end {
		d.Remove = &Removal{Pos: start, Length: len(a) - start - end}
	}
	if len(b) != start+end {
		d.Insert = &Insertion{Pos: start, Text: utf16text.Slice(newText, start, len(b)-end)}
	}
	return d
}

// NormalizeNewlines collapses "\r\n" line breaks to "\n".
func NormalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	return strings.ReplaceAll(s, "\r\n", "\n")
}
