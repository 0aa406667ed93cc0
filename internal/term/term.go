// Package term hosts a field.Field on a terminal screen.
package term

import (
	"github.com/atotto/clipboard"
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"fieldsync/internal/field"
)

const tabWidth = 4

// Clipboard is where cut text goes and pasted text comes from.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error) { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// SystemClipboard uses the desktop clipboard.
var SystemClipboard Clipboard = systemClipboard{}

type View struct {
	screen tcell.Screen
	field  *field.Field
	clip   Clipboard
	title  string
	status func() string

	pasting bool
	pasted  []rune

	styleText   tcell.Style
	styleSel    tcell.Style
	styleStatus tcell.Style
}

// New returns a view of f on screen. status, if set, supplies text for the
// bottom line.
func New(screen tcell.Screen, f *field.Field, clip Clipboard, title string, status func() string) *View {
	return &View{
		screen:      screen,
		field:       f,
		clip:        clip,
		title:       title,
		status:      status,
		styleText:   tcell.StyleDefault,
		styleSel:    tcell.StyleDefault.Reverse(true),
		styleStatus: tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGray),
	}
}

// HandleEvent applies a terminal event to the field and reports whether the
// user asked to quit.
func (v *View) HandleEvent(ev tcell.Event) (quit bool) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.screen.Sync()
	case *tcell.EventFocus:
		if ev.Focused {
			v.field.Focus()
		} else {
			v.field.Blur()
		}
	case *tcell.EventPaste:
		if ev.Start() {
			v.pasting, v.pasted = true, v.pasted[:0]
		} else if ev.End() {
			v.pasting = false
			v.field.Paste(string(v.pasted))
		}
	case *tcell.EventKey:
		if v.pasting {
			switch ev.Key() {
			case tcell.KeyRune:
				v.pasted = append(v.pasted, ev.Rune())
			case tcell.KeyEnter:
				v.pasted = append(v.pasted, '\n')
			case tcell.KeyTab:
				v.pasted = append(v.pasted, '\t')
			}
			return false
		}
		return v.handleKey(ev)
	}
	return false
}

func (v *View) handleKey(ev *tcell.EventKey) bool {
	f := v.field
	switch ev.Key() {
	case tcell.KeyCtrlQ, tcell.KeyEscape:
		return true
	case tcell.KeyRune:
		f.Type(string(ev.Rune()))
	case tcell.KeyEnter:
		f.Type("\n")
	case tcell.KeyTab:
		f.Type("\t")
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		f.Backspace()
	case tcell.KeyDelete:
		f.Delete()
	case tcell.KeyLeft:
		f.MoveLeft()
	case tcell.KeyRight:
		f.MoveRight()
	case tcell.KeyCtrlA:
		f.SelectAll()
	case tcell.KeyCtrlX:
		if cut := f.Cut(); cut != "" && v.clip != nil {
			_ = v.clip.WriteAll(cut)
		}
	case tcell.KeyCtrlC:
		if v.clip != nil {
			_ = v.clip.WriteAll(f.Selected())
		}
	case tcell.KeyCtrlV:
		if v.clip != nil {
			if text, err := v.clip.ReadAll(); err == nil && text != "" {
				f.Paste(text)
			}
		}
	case tcell.KeyPgUp:
		f.SetScrollTop(f.ScrollTop() - v.height())
	case tcell.KeyPgDn:
		f.SetScrollTop(f.ScrollTop() + v.height())
	}
	return false
}

// height is the number of text rows above the status line.
func (v *View) height() int {
	_, h := v.screen.Size()
	if h > 1 {
		return h - 1
	}
	return 1
}

// Draw renders the field and the status line.
func (v *View) Draw() {
	s := v.screen
	s.Clear()
	width, _ := s.Size()
	height := v.height()
	f := v.field

	line, _ := f.Caret()
	if line < f.ScrollTop() {
		f.SetScrollTop(line)
	} else if line >= f.ScrollTop()+height {
		f.SetScrollTop(line - height + 1)
	}
	top := f.ScrollTop()
	selStart, selEnd := f.Selection()

	row, col, off := 0, 0, 0
	caretX, caretY := -1, -1
	for _, r := range f.Value() {
		if off == selEnd && selStart == selEnd {
			caretX, caretY = col, row-top
		}
		units := 1
		if r >= 0x10000 {
			units = 2
		}
		switch r {
		case '\r':
		case '\n':
			row, col = row+1, 0
		default:
			style := v.styleText
			if off >= selStart && off < selEnd {
				style = v.styleSel
			}
			w := runewidth.RuneWidth(r)
			if r == '\t' {
				w = tabWidth
				for i := 0; i < tabWidth; i++ {
					v.put(col+i, row-top, ' ', style, width, height)
				}
			} else {
				v.put(col, row-top, r, style, width, height)
			}
			col += w
		}
		off += units
	}
	if off == selEnd && selStart == selEnd {
		caretX, caretY = col, row-top
	}
	if caretY >= 0 && caretY < height && caretX < width {
		s.ShowCursor(caretX, caretY)
	} else {
		s.HideCursor()
	}

	status := v.title
	if v.status != nil {
		status += "  " + v.status()
	}
	x := 0
	for _, r := range status {
		if x >= width {
			break
		}
		s.SetContent(x, height, r, nil, v.styleStatus)
		x += runewidth.RuneWidth(r)
	}
	for ; x < width; x++ {
		s.SetContent(x, height, ' ', nil, v.styleStatus)
	}
	s.Show()
}

func (v *View) put(x, y int, r rune, style tcell.Style, width, height int) {
	if y < 0 || y >= height || x >= width {
		return
	}
	v.screen.SetContent(x, y, r, nil, style)
}
