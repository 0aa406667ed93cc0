// Package sim drives several bound fields over one in-process document with
// seeded random edits, for convergence tests and benchmarks.
package sim

import (
	"math/rand"

	"fieldsync"
	"fieldsync/internal/document"
	"fieldsync/internal/field"
	"fieldsync/internal/loop"
	"fieldsync/internal/utf16text"
)

// Client is one simulated user: a field bound to its own context, with
// checks deferred to its own loop.
type Client struct {
	SiteId  string
	Field   *field.Field
	Context *document.Context
	Binding *fieldsync.Binding
	Loop    *loop.Loop
	Edits   int
}

func NewClient(doc *document.Doc, siteId string, crlf bool) (*Client, error) {
	c := &Client{
		SiteId:  siteId,
		Field:   field.New("", field.Options{CRLF: crlf, Focused: true}),
		Context: doc.NewContext(),
		Loop:    loop.New(),
	}
	b, err := fieldsync.Attach(c.Field, c.Context, fieldsync.Options{Name: siteId, Scheduler: c.Loop})
	if err != nil {
		return nil, err
	}
	c.Binding = b
	return c, nil
}

// Document returns the field's text with line endings normalized.
func (c *Client) Document() string {
	return fieldsync.NormalizeNewlines(c.Field.Value())
}

// Settle runs the client's pending checks.
func (c *Client) Settle() int {
	return c.Loop.Drain()
}

var alphabet = []string{"a", "b", "c", "x", " ", "\n", "é", "日", "😀", "é"}

func randomText(rng *rand.Rand, max int) string {
	n := 1 + rng.Intn(max)
	out := ""
	for i := 0; i < n; i++ {
		out += alphabet[rng.Intn(len(alphabet))]
	}
	return out
}

// randomRange picks a range of text that splits neither a surrogate pair
// nor a "\r\n" line break.
func randomRange(rng *rand.Rand, text string) (int, int) {
	units := utf16text.Encode(text)
	a, b := align(units, rng.Intn(len(units)+1)), align(units, rng.Intn(len(units)+1))
	if b < a {
		a, b = b, a
	}
	return a, b
}

func align(units []uint16, pos int) int {
	if pos > 0 && pos < len(units) {
		if utf16text.IsLowSurrogate(units[pos]) || units[pos-1] == '\r' && units[pos] == '\n' {
			return pos - 1
		}
	}
	return pos
}

// RandomEdit performs one user action chosen by rng.
func (c *Client) RandomEdit(rng *rand.Rand, config ChaosConfig) {
	f := c.Field
	start, end := randomRange(rng, f.Value())
	f.Select(start, end)
	c.Edits++
	switch p := rng.Float64(); {
	case p < config.TypeProb:
		f.Type(randomText(rng, config.MaxInsertLen))
	case p < config.TypeProb+config.DeleteProb:
		if rng.Intn(2) == 0 {
			f.Backspace()
		} else {
			f.Delete()
		}
	case p < config.TypeProb+config.DeleteProb+config.CutProb:
		if cut := f.Cut(); cut != "" && rng.Intn(2) == 0 {
			f.MoveLeft()
			f.Paste(cut)
		}
	default:
		f.Paste(randomText(rng, config.MaxInsertLen*4))
	}
}
