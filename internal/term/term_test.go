package term

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/require"

	"fieldsync"
	"fieldsync/internal/field"
)

type fakeClipboard struct {
	text string
}

func (c *fakeClipboard) ReadAll() (string, error) { return c.text, nil }
func (c *fakeClipboard) WriteAll(text string) error { c.text = text; return nil }

func newView(t *testing.T, text string) (*View, *field.Field, tcell.SimulationScreen, *fakeClipboard) {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, s.Init())
	t.Cleanup(s.Fini)
	s.SetSize(20, 4)
	f := field.New(text, field.Options{Focused: true})
	clip := &fakeClipboard{}
	return New(s, f, clip, "doc", func() string { return "v1" }), f, s, clip
}

func row(s tcell.SimulationScreen, y int) string {
	cells, w, _ := s.GetContents()
	var b strings.Builder
	for x := 0; x < w; x++ {
		c := cells[y*w+x]
		if len(c.Runes) == 0 {
			b.WriteByte(' ')
			continue
		}
		b.WriteString(string(c.Runes))
	}
	return strings.TrimRight(b.String(), " ")
}

func key(k tcell.Key) *tcell.EventKey {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func runes(v *View, text string) {
	for _, r := range text {
		v.HandleEvent(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
	}
}

func TestTypingAndEditingKeys(t *testing.T) {
	v, f, _, _ := newView(t, "")
	runes(v, "helo")
	v.HandleEvent(key(tcell.KeyLeft))
	runes(v, "l")
	v.HandleEvent(key(tcell.KeyEnter))
	runes(v, "x")
	v.HandleEvent(key(tcell.KeyBackspace2))
	require.Equal(t, "hell\no", f.Value())

	v.HandleEvent(key(tcell.KeyLeft))
	v.HandleEvent(key(tcell.KeyDelete))
	require.Equal(t, "hello", f.Value())
}

func TestQuitKeys(t *testing.T) {
	v, _, _, _ := newView(t, "")
	require.False(t, v.HandleEvent(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)))
	require.True(t, v.HandleEvent(key(tcell.KeyCtrlQ)))
	require.True(t, v.HandleEvent(key(tcell.KeyEscape)))
}

func TestCutAndPasteUseClipboard(t *testing.T) {
	v, f, _, clip := newView(t, "hello world")
	f.SetSelection(0, 6)
	v.HandleEvent(key(tcell.KeyCtrlX))
	require.Equal(t, "hello ", clip.text)
	require.Equal(t, "world", f.Value())

	v.HandleEvent(key(tcell.KeyCtrlV))
	require.Equal(t, "hello world", f.Value())

	v.HandleEvent(key(tcell.KeyCtrlA))
	v.HandleEvent(key(tcell.KeyCtrlC))
	require.Equal(t, "hello world", clip.text)
}

func TestBracketedPasteIsOnePaste(t *testing.T) {
	v, f, _, _ := newView(t, "")
	pastes := 0
	f.Subscribe(fieldsync.EventPaste, func() { pastes++ })

	v.HandleEvent(tcell.NewEventPaste(true))
	runes(v, "ab")
	v.HandleEvent(key(tcell.KeyEnter))
	runes(v, "c")
	v.HandleEvent(tcell.NewEventPaste(false))

	require.Equal(t, "ab\nc", f.Value())
	require.Equal(t, 1, pastes)
}

func TestFocusEvents(t *testing.T) {
	v, f, _, _ := newView(t, "")
	v.HandleEvent(tcell.NewEventFocus(false))
	require.False(t, f.HasFocus())
	v.HandleEvent(tcell.NewEventFocus(true))
	require.True(t, f.HasFocus())
}

func TestDrawShowsTextCaretAndStatus(t *testing.T) {
	v, f, s, _ := newView(t, "ab\ncd")
	f.SetSelection(4, 4)
	v.Draw()

	require.Equal(t, "ab", row(s, 0))
	require.Equal(t, "cd", row(s, 1))
	require.Equal(t, "doc  v1", row(s, 3))
	x, y, visible := s.GetCursor()
	require.True(t, visible)
	require.Equal(t, 1, x)
	require.Equal(t, 1, y)
}

func TestDrawScrollsToCaret(t *testing.T) {
	v, f, s, _ := newView(t, "1\n2\n3\n4\n5")
	f.SetSelection(9, 9)
	v.Draw()
	require.Equal(t, 2, f.ScrollTop())
	require.Equal(t, "3", row(s, 0))
	require.Equal(t, "5", row(s, 2))

	f.SetSelection(0, 0)
	v.Draw()
	require.Equal(t, 0, f.ScrollTop())
	require.Equal(t, "1", row(s, 0))
}

func TestDrawHighlightsSelection(t *testing.T) {
	v, f, s, _ := newView(t, "abcd")
	f.SetSelection(1, 3)
	v.Draw()

	cells, _, _ := s.GetContents()
	_, _, attr := cells[0].Style.Decompose()
	require.Zero(t, attr&tcell.AttrReverse)
	_, _, attr = cells[1].Style.Decompose()
	require.NotZero(t, attr&tcell.AttrReverse)
	_, _, attr = cells[3].Style.Decompose()
	require.Zero(t, attr&tcell.AttrReverse)
}

func TestDrawWideRunes(t *testing.T) {
	v, _, s, _ := newView(t, "日本x")
	v.Draw()
	cells, _, _ := s.GetContents()
	require.Equal(t, []rune{'日'}, cells[0].Runes)
	require.Equal(t, []rune{'本'}, cells[2].Runes)
	require.Equal(t, []rune{'x'}, cells[4].Runes)
}
