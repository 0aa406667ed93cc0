// Package document provides an in-process shared text document. Each
// Context is one participant; an edit made through one context is applied
// to the shared text and reported to the listeners of all the others.
//
// Edits are applied in call order with no transformation, so participants
// must take turns: all contexts are meant to be driven from one loop.
package document

import (
	"fieldsync"
	"fieldsync/internal/utf16text"
)

// Text is a versioned string edited by UTF-16 offsets. Out-of-range
// offsets clamp.
type Text struct {
	value   string
	version uint64
}

func NewText(s string) *Text {
	return &Text{value: s}
}

func (t *Text) String() string { return t.value }

// Version counts the edits applied so far.
func (t *Text) Version() uint64 { return t.version }

// Reset replaces the value and version, as when loading a snapshot.
func (t *Text) Reset(s string, version uint64) {
	t.value = s
	t.version = version
}

func (t *Text) Insert(pos int, s string) {
	t.value = utf16text.Insert(t.value, pos, s)
	t.version++
}

func (t *Text) Remove(pos, length int) {
	t.value = utf16text.Remove(t.value, pos, length)
	t.version++
}

// Doc is a shared document.
type Doc struct {
	text     *Text
	opaque   bool
	contexts []*Context
}

// New returns a text document holding s.
func New(s string) *Doc {
	return &Doc{text: NewText(s)}
}

// NewOpaque returns a document that does not support text operations.
func NewOpaque() *Doc {
	return &Doc{text: NewText(""), opaque: true}
}

func (d *Doc) String() string { return d.text.String() }

func (d *Doc) Version() uint64 { return d.text.Version() }

// NewContext joins a new participant.
func (d *Doc) NewContext() *Context {
	c := &Context{doc: d}
	d.contexts = append(d.contexts, c)
	return c
}

// Insert edits the document as an outside party, notifying every context.
func (d *Doc) Insert(pos int, s string) { d.insert(nil, pos, s) }

// Remove edits the document as an outside party, notifying every context.
func (d *Doc) Remove(pos, length int) { d.remove(nil, pos, length) }

func (d *Doc) insert(from *Context, pos int, s string) {
	d.text.Insert(pos, s)
	for _, c := range d.others(from) {
		c.listener.OnInsert(pos, s)
	}
}

func (d *Doc) remove(from *Context, pos, length int) {
	d.text.Remove(pos, length)
	for _, c := range d.others(from) {
		c.listener.OnRemove(pos, length)
	}
}

// others returns the listening contexts other than from. The slice is a
// copy so listeners may close contexts.
func (d *Doc) others(from *Context) []*Context {
	var out []*Context
	for _, c := range d.contexts {
		if c != from && c.listener != nil {
			out = append(out, c)
		}
	}
	return out
}

// Context is one participant's handle on a Doc. It implements
// fieldsync.Context.
type Context struct {
	doc      *Doc
	listener fieldsync.Listener
	ops      int
}

var _ fieldsync.Context = (*Context)(nil)

func (c *Context) Get() string { return c.doc.text.String() }

func (c *Context) Insert(pos int, text string) {
	c.ops++
	c.doc.insert(c, pos, text)
}

func (c *Context) Remove(pos, length int) {
	c.ops++
	c.doc.remove(c, pos, length)
}

func (c *Context) ProvidesText() bool { return !c.doc.opaque }

func (c *Context) SetListener(l fieldsync.Listener) { c.listener = l }

// Ops returns the number of edits sent through c.
func (c *Context) Ops() int { return c.ops }

// Close leaves the document.
func (c *Context) Close() {
	c.listener = nil
	cs := c.doc.contexts
	for i, x := range cs {
		if x == c {
			c.doc.contexts = append(cs[:i:i], cs[i+1:]...)
			return
		}
	}
}
