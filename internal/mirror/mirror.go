// Package mirror keeps a shadow copy of a control's text that is advanced by
// patches rather than wholesale replacement, so every change is recorded as
// a revision.
package mirror

import (
	"context"
	"log/slog"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"

	"fieldsync/internal/logger"
)

const defaultHistoryLimit = 100

// Revision is one recorded change.
type Revision struct {
	Patch    string
	Inserted int
	Deleted  int
}

type Buffer struct {
	dmp     *diffmatchpatch.DiffMatchPatch
	text    string
	history []Revision
	limit   int
	log     *slog.Logger
}

// New returns a buffer holding text that keeps at most limit revisions
// (100 when limit is 0).
func New(text string, limit int) *Buffer {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &Buffer{
		dmp:   diffmatchpatch.New(),
		text:  text,
		limit: limit,
		log:   logger.Log.With("component", "mirror"),
	}
}

func (b *Buffer) Text() string { return b.text }

// History returns the retained revisions, oldest first.
func (b *Buffer) History() []Revision {
	return append([]Revision(nil), b.history...)
}

// SetTextViaDiff moves the buffer to text by patching, recording a revision
// when anything changed.
func (b *Buffer) SetTextViaDiff(text string) {
	if text == b.text {
		return
	}
	diffs := b.dmp.DiffMain(b.text, text, false)
	diffs = b.dmp.DiffCleanupSemantic(diffs)
	patches := b.dmp.PatchMake(b.text, diffs)

	next, applied := b.dmp.PatchApply(patches, b.text)
	for _, ok := range applied {
		if !ok {
			next = text
			break
		}
	}
	if next != text {
		b.log.Warn("mirror_patch_mismatch")
		next = text
	}

	rev := Revision{Patch: b.dmp.PatchToText(patches)}
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			rev.Inserted += len([]rune(d.Text))
		case diffmatchpatch.DiffDelete:
			rev.Deleted += len([]rune(d.Text))
		}
	}
	if b.log.Enabled(context.Background(), slog.LevelDebug) {
		b.log.Debug("mirror_revision", "diff", Unified(b.text, next))
	}

	b.text = next
	b.history = append(b.history, rev)
	if len(b.history) > b.limit {
		b.history = append([]Revision(nil), b.history[len(b.history)-b.limit:]...)
	}
}

// Unified renders the line diff between two texts.
func Unified(from, to string) string {
	s, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(from),
		B:        difflib.SplitLines(to),
		FromFile: "before",
		ToFile:   "after",
		Context:  1,
	})
	if err != nil {
		return ""
	}
	return s
}
