package fieldsync_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"fieldsync"
	"fieldsync/internal/document"
	"fieldsync/internal/field"
	"fieldsync/internal/loop"
	"fieldsync/internal/mirror"
)

type recorder struct {
	ops []string
}

func (r *recorder) OnInsert(pos int, text string) {
	r.ops = append(r.ops, fmt.Sprintf("insert(%d,%q)", pos, text))
}

func (r *recorder) OnRemove(pos, length int) {
	r.ops = append(r.ops, fmt.Sprintf("remove(%d,%d)", pos, length))
}

type setup struct {
	doc   *document.Doc
	ctx   *document.Context
	field *field.Field
	b     *fieldsync.Binding
	peer  *recorder
}

func attach(t *testing.T, text string, fo field.Options, opts fieldsync.Options) *setup {
	t.Helper()
	s := &setup{doc: document.New(text), peer: &recorder{}}
	s.ctx = s.doc.NewContext()
	s.doc.NewContext().SetListener(s.peer)
	s.field = field.New("", fo)
	b, err := fieldsync.Attach(s.field, s.ctx, opts)
	require.NoError(t, err)
	s.b = b
	return s
}

func TestAttachCopiesDocumentText(t *testing.T) {
	s := attach(t, "hello", field.Options{}, fieldsync.Options{})
	require.Equal(t, "hello", s.field.Value())
	require.Equal(t, "hello", s.b.Snapshot())
	for _, k := range fieldsync.Events {
		require.Equal(t, 1, s.field.Subscribers(k), k.String())
	}
}

func TestAttachRejectsOpaqueDocument(t *testing.T) {
	f := field.New("untouched", field.Options{})
	ctx := document.NewOpaque().NewContext()
	b, err := fieldsync.Attach(f, ctx, fieldsync.Options{})
	require.ErrorIs(t, err, fieldsync.ErrUnsupportedDocumentType)
	require.Nil(t, b)
	require.Equal(t, "untouched", f.Value())
	require.Zero(t, f.Subscribers(fieldsync.EventTextInput))
}

func TestTypingOverSuffixSendsRemoveThenInsert(t *testing.T) {
	s := attach(t, "hello", field.Options{Focused: true}, fieldsync.Options{})
	s.field.SetSelection(3, 5)
	s.field.Type("p")

	require.Equal(t, "help", s.doc.String())
	require.Equal(t, []string{"remove(3,2)", `insert(3,"p")`}, s.peer.ops)
	require.Equal(t, "help", s.b.Snapshot())
}

func TestReplacingEverythingSendsRemoveThenInsert(t *testing.T) {
	s := attach(t, "foo", field.Options{Focused: true}, fieldsync.Options{})
	s.field.SelectAll()
	s.field.Type("bar")

	require.Equal(t, "bar", s.doc.String())
	require.Equal(t, []string{"remove(0,3)", `insert(0,"bar")`}, s.peer.ops)
}

func TestRemoteInsertShiftsCursor(t *testing.T) {
	s := attach(t, "hello ", field.Options{Focused: true}, fieldsync.Options{})
	s.field.SetSelection(6, 6)
	s.doc.Insert(5, "world")

	require.Equal(t, "helloworld ", s.field.Value())
	start, end := s.field.Selection()
	require.Equal(t, 11, start)
	require.Equal(t, 11, end)
	require.Zero(t, s.ctx.Ops())
}

func TestRemoteRemoveCollapsesCursor(t *testing.T) {
	s := attach(t, "hello world", field.Options{Focused: true}, fieldsync.Options{})
	s.field.SetSelection(3, 8)
	s.doc.Remove(0, 5)

	require.Equal(t, " world", s.field.Value())
	start, end := s.field.Selection()
	require.Equal(t, 0, start)
	require.Equal(t, 3, end)
}

func TestRemoteEditLeavesUnfocusedSelection(t *testing.T) {
	s := attach(t, "hello", field.Options{}, fieldsync.Options{})
	s.field.SetSelection(1, 1)
	s.doc.Insert(0, ">")

	require.Equal(t, ">hello", s.field.Value())
	start, _ := s.field.Selection()
	require.Equal(t, 6, start)
}

func TestRemoteEditKeepsScroll(t *testing.T) {
	s := attach(t, "a\nb\nc\nd", field.Options{Focused: true}, fieldsync.Options{})
	s.field.SetScrollTop(2)
	s.doc.Insert(0, "x")
	require.Equal(t, 2, s.field.ScrollTop())
}

func TestRemoteEditIsNotEchoed(t *testing.T) {
	s := attach(t, "abc", field.Options{Focused: true}, fieldsync.Options{})
	s.doc.Remove(1, 1)
	s.b.Check()
	s.field.Type("")
	require.Zero(t, s.ctx.Ops())
	require.Equal(t, "ac", s.b.Snapshot())
}

func TestLineEndingOnlyChangeSendsNothing(t *testing.T) {
	s := attach(t, "a\nb", field.Options{Focused: true}, fieldsync.Options{})
	s.field.SetValue("a\r\nb")
	s.b.Check()
	require.Zero(t, s.ctx.Ops())
	require.Equal(t, "a\r\nb", s.b.Snapshot())
}

func TestCRLFFieldUsesNormalizedOffsets(t *testing.T) {
	s := attach(t, "a\nb", field.Options{CRLF: true, Focused: true}, fieldsync.Options{})
	require.Equal(t, "a\r\nb", s.field.Value())

	s.field.SetSelection(1, 1)
	s.field.Type("!")
	require.Equal(t, "a!\nb", s.doc.String())
	require.Equal(t, []string{`insert(1,"!")`}, s.peer.ops)

	s.doc.Insert(4, "c")
	require.Equal(t, "a!\r\nbc", s.field.Value())
	require.Equal(t, "a!\r\nbc", s.b.Snapshot())
}

func TestCRLFFieldKeepsCursorAcrossRemoteEdits(t *testing.T) {
	s := attach(t, "a\nbc", field.Options{CRLF: true, Focused: true}, fieldsync.Options{})
	require.Equal(t, "a\r\nbc", s.field.Value())

	s.field.SetSelection(3, 3)
	s.doc.Remove(2, 1)
	require.Equal(t, "a\r\nc", s.field.Value())
	start, end := s.field.Selection()
	require.Equal(t, 3, start)
	require.Equal(t, 3, end)

	s.doc.Insert(3, "X")
	require.Equal(t, "a\r\ncX", s.field.Value())
	start, _ = s.field.Selection()
	require.Equal(t, 3, start)

	s.field.SetSelection(4, 5)
	s.doc.Insert(0, "z\n")
	require.Equal(t, "z\r\na\r\ncX", s.field.Value())
	start, end = s.field.Selection()
	require.Equal(t, 7, start)
	require.Equal(t, 8, end)
}

func TestCRLFCaretInsideLineBreakMapsToBreak(t *testing.T) {
	s := attach(t, "a\nb", field.Options{CRLF: true, Focused: true}, fieldsync.Options{})
	s.field.SetSelection(2, 2)
	s.doc.Insert(0, "x")
	start, _ := s.field.Selection()
	require.Equal(t, 2, start)
}

func TestDeferredChecksWaitForScheduler(t *testing.T) {
	l := loop.New()
	s := attach(t, "", field.Options{Focused: true}, fieldsync.Options{Scheduler: l})
	s.field.Type("hi")
	require.Equal(t, "", s.doc.String())
	require.Equal(t, 3, l.Pending())

	l.Drain()
	require.Equal(t, "hi", s.doc.String())
	require.Equal(t, []string{`insert(0,"hi")`}, s.peer.ops)
}

func TestDetachStopsSync(t *testing.T) {
	s := attach(t, "abc", field.Options{Focused: true}, fieldsync.Options{})
	s.b.Detach()
	s.b.Detach()

	for _, k := range fieldsync.Events {
		require.Zero(t, s.field.Subscribers(k))
	}
	s.field.Type("x")
	require.Equal(t, "abc", s.doc.String())
	s.doc.Insert(0, "y")
	require.Equal(t, "abcx", s.field.Value())
}

func TestMirrorFollowsControl(t *testing.T) {
	m := mirror.New("", 0)
	s := attach(t, "one", field.Options{Focused: true}, fieldsync.Options{Mirror: m})
	require.Equal(t, "one", m.Text())
	s.doc.Insert(3, " two")
	require.Equal(t, "one two", m.Text())
	require.Len(t, m.History(), 2)
}

func TestTwoFieldsConverge(t *testing.T) {
	doc := document.New("shared")
	fa := field.New("", field.Options{Focused: true})
	fb := field.New("", field.Options{Focused: true})
	_, err := fieldsync.Attach(fa, doc.NewContext(), fieldsync.Options{Name: "a"})
	require.NoError(t, err)
	_, err = fieldsync.Attach(fb, doc.NewContext(), fieldsync.Options{Name: "b"})
	require.NoError(t, err)

	fb.SetSelection(0, 0)
	fa.SetSelection(6, 6)
	fa.Type(" text")
	fb.Type("our ")
	fa.Backspace()

	require.Equal(t, "our shared tex", doc.String())
	require.Equal(t, doc.String(), fa.Value())
	require.Equal(t, doc.String(), fb.Value())
	start, _ := fb.Selection()
	require.Equal(t, 4, start)
}
