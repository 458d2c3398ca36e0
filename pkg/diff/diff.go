// Package diff computes character-level diffs between a draft and its
// revised text, for rendering the review view before the user approves or
// rejects a revision.
package diff

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op classifies one span of the diff.
type Op int

const (
	OpEqual Op = iota
	OpInsert
	OpDelete
)

// Span is a run of characters sharing one diff operation, in display order.
type Span struct {
	Text string
	Op   Op
}

var dmp = func() *diffmatchpatch.DiffMatchPatch {
	d := diffmatchpatch.New()
	d.DiffTimeout = 0
	return d
}()

// Chars diffs two strings character by character. Semantic cleanup merges
// the scattered one-character edits a raw diff produces on natural-language
// text into spans a human can read.
func Chars(original, revised string) []Span {
	diffs := dmp.DiffMain(original, revised, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	ret := make([]Span, 0, len(diffs))
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		span := Span{Text: d.Text}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			span.Op = OpInsert
		case diffmatchpatch.DiffDelete:
			span.Op = OpDelete
		default:
			span.Op = OpEqual
		}
		ret = append(ret, span)
	}
	return ret
}

// Changed reports whether the revision differs from the original at all.
func Changed(spans []Span) bool {
	for _, span := range spans {
		if span.Op != OpEqual {
			return true
		}
	}
	return false
}

// Apply reconstructs the revised text from a diff, dropping deleted spans.
func Apply(spans []Span) string {
	ret := ""
	for _, span := range spans {
		if span.Op != OpDelete {
			ret += span.Text
		}
	}
	return ret
}
