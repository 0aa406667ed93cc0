package fieldsync

import "errors"

// ErrUnsupportedDocumentType is returned by Attach when the context does not
// provide text operations.
var ErrUnsupportedDocumentType = errors.New("cannot attach to non-text document")

// Listener receives edits that another party made to the shared document.
type Listener interface {
	OnInsert(pos int, text string)
	OnRemove(pos, length int)
}

// Context is a handle on a shared text document.
type Context interface {
	Get() string
	Insert(pos int, text string)
	Remove(pos, length int)
	// ProvidesText reports whether the document supports text operations.
	ProvidesText() bool
	// SetListener installs l as the receiver of remote edits. A nil l
	// removes the current listener.
	SetListener(l Listener)
}

// EventKind is an interaction class after which the control's text may have
// changed.
type EventKind uint8

const (
	EventTextInput EventKind = iota
	EventKeyDown
	EventKeyUp
	EventSelect
	EventCut
	EventPaste
)

// Events lists every interaction class a Binding subscribes to.
var Events = []EventKind{EventTextInput, EventKeyDown, EventKeyUp, EventSelect, EventCut, EventPaste}

func (k EventKind) String() string {
	switch k {
	case EventTextInput:
		return "textinput"
	case EventKeyDown:
		return "keydown"
	case EventKeyUp:
		return "keyup"
	case EventSelect:
		return "select"
	case EventCut:
		return "cut"
	case EventPaste:
		return "paste"
	}
	return "unknown"
}

// Control is the host's editable text field.
type Control interface {
	Value() string
	SetValue(s string)
	Selection() (start, end int)
	SetSelection(start, end int)
	ScrollTop() int
	SetScrollTop(top int)
	HasFocus() bool
	// Subscribe calls fn after every event of kind k until the returned
	// function is called.
	Subscribe(k EventKind, fn func()) (unsubscribe func())
}

// Scheduler runs fn after the current task of the host loop completes.
type Scheduler interface {
	Defer(fn func())
}

// Mirror is an optional shadow of the control's text, updated every time
// the binding rewrites the control.
type Mirror interface {
	SetTextViaDiff(text string)
}

type immediate struct{}

func (immediate) Defer(fn func()) { fn() }
