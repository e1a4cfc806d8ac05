package buffer

import (
	"errors"
	"unicode/utf16"
	"unicode/utf8"
)

// ErrStaleEdit is returned by Apply when the proposed version does not
// strictly advance the buffer's current version.
var ErrStaleEdit = errors.New("buffer: stale edit")

// ContentChange is one LSP textDocument/didChange content change. Range nil
// means "replace the whole document" (Text is the new full content); all
// Range offsets in a single Apply batch are interpreted against the
// document as it existed before the batch started (see Apply).
type ContentChange struct {
	Range *Range
	Text  string
}

// RangeDelta describes how one applied change reshaped the byte-offset
// space of the document it was applied to. Offsets are against the
// PRE-change document. Callers (the STM) use TransformOffset to carry a
// stored offset across a batch of deltas.
type RangeDelta struct {
	OldStart int // byte offset, inclusive
	OldEnd   int // byte offset, exclusive
	NewLen   int // byte length of the replacement text
}

// TextBuffer holds one document's text, immutable between edits, plus a
// monotone version counter. It is not safe for concurrent use; the
// DocumentController owns exclusive access.
type TextBuffer struct {
	text       string
	version    int
	lineStarts []int // byte offset where each line begins; lineStarts[0] == 0
}

// New creates a TextBuffer seeded with initial content at the given version.
func New(initial string, version int) *TextBuffer {
	b := &TextBuffer{text: initial, version: version}
	b.reindex()
	return b
}

func (b *TextBuffer) Text() string   { return b.text }
func (b *TextBuffer) Version() int   { return b.version }
func (b *TextBuffer) Len() int       { return len(b.text) }
func (b *TextBuffer) LineCount() int { return len(b.lineStarts) }

// reindex recomputes line-start offsets. \r\n, \r and \n are each
// recognized as a line terminator independently, per line.
func (b *TextBuffer) reindex() {
	starts := []int{0}
	text := b.text
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			starts = append(starts, i+1)
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			starts = append(starts, i+1)
		}
	}
	b.lineStarts = starts
}

// Slice returns the text within a Position range.
func (b *TextBuffer) Slice(r Range) string {
	start := b.OffsetAt(r.Start)
	end := b.OffsetAt(r.End)
	if start > end {
		start, end = end, start
	}
	return b.Substr(start, end-start)
}

// Substr returns byte length bytes starting at byte offset off, clamped to
// the document's bounds.
func (b *TextBuffer) Substr(off, length int) string {
	if off < 0 {
		off = 0
	}
	if off > len(b.text) {
		off = len(b.text)
	}
	end := off + length
	if end > len(b.text) {
		end = len(b.text)
	}
	if end < off {
		end = off
	}
	return b.text[off:end]
}

// lineSpan returns the byte [start,end) of line's content, excluding its
// terminator.
func (b *TextBuffer) lineSpan(line int) (int, int) {
	if line < 0 {
		line = 0
	}
	if line >= len(b.lineStarts) {
		return len(b.text), len(b.text)
	}
	start := b.lineStarts[line]
	var end int
	if line+1 < len(b.lineStarts) {
		end = b.lineStarts[line+1]
		// Strip the terminator back off.
		for end > start && (b.text[end-1] == '\n' || b.text[end-1] == '\r') {
			end--
		}
	} else {
		end = len(b.text)
	}
	return start, end
}

// OffsetAt converts a Position to a byte offset, accounting for UTF-16
// code-unit columns (surrogate pairs count as two units).
func (b *TextBuffer) OffsetAt(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	lineStart, lineEnd := b.lineSpan(pos.Line)
	if pos.Character <= 0 {
		return lineStart
	}
	units := 0
	off := lineStart
	for off < lineEnd {
		r, size := decodeRune(b.text[off:lineEnd])
		ru := utf16.RuneLen(r)
		if ru <= 0 {
			ru = 1
		}
		if units+ru > pos.Character {
			return off
		}
		units += ru
		off += size
		if units >= pos.Character {
			return off
		}
	}
	return lineEnd
}

// PositionAt converts a byte offset to a Position.
func (b *TextBuffer) PositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(b.text) {
		offset = len(b.text)
	}
	line := searchLine(b.lineStarts, offset)
	lineStart, _ := b.lineSpan(line)
	units := 0
	off := lineStart
	for off < offset {
		r, size := decodeRune(b.text[off:offset])
		ru := utf16.RuneLen(r)
		if ru <= 0 {
			ru = 1
		}
		units += ru
		off += size
	}
	return Position{Line: line, Character: units}
}

// searchLine returns the index of the last lineStarts entry <= offset.
func searchLine(lineStarts []int, offset int) int {
	lo, hi := 0, len(lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// decodeRune decodes the leading rune of s, returning its value and its
// width in bytes (at least 1, even for invalid UTF-8).
func decodeRune(s string) (rune, int) {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return 0, 1
	}
	return r, size
}

// Apply applies a batch of content changes, processed in reverse document
// order (highest start offset first) so that earlier offsets in the batch
// remain valid against the pre-batch document, and bumps the version
// counter atomically with the batch. All change Ranges are interpreted
// against the document as it existed before any change in this batch was
// applied. Returns the per-change deltas in pre-batch offset space, sorted
// ascending by OldStart (the order TransformOffset expects).
func (b *TextBuffer) Apply(changes []ContentChange, newVersion int) ([]RangeDelta, error) {
	if newVersion <= b.version {
		return nil, ErrStaleEdit
	}
	if len(changes) == 0 {
		b.version = newVersion
		return nil, nil
	}

	type resolved struct {
		start, end int
		text       string
	}
	resolvedChanges := make([]resolved, 0, len(changes))
	for _, c := range changes {
		if c.Range == nil {
			// Whole-document replace; must be the only change to be
			// meaningful, but we honor it in-place regardless of batch
			// position by resetting text immediately.
			b.text = c.Text
			b.version = newVersion
			b.reindex()
			return nil, nil
		}
		start := b.OffsetAt(c.Range.Start)
		end := b.OffsetAt(c.Range.End)
		if start > end {
			start, end = end, start
		}
		resolvedChanges = append(resolvedChanges, resolved{start, end, c.Text})
	}

	// Sort descending by start offset (reverse document order) so splices
	// at the tail of the document never invalidate the offsets of splices
	// earlier in the document.
	for i := 1; i < len(resolvedChanges); i++ {
		for j := i; j > 0 && resolvedChanges[j].start > resolvedChanges[j-1].start; j-- {
			resolvedChanges[j], resolvedChanges[j-1] = resolvedChanges[j-1], resolvedChanges[j]
		}
	}

	text := b.text
	for _, c := range resolvedChanges {
		text = text[:c.start] + c.text + text[c.end:]
	}
	b.text = text
	b.version = newVersion
	b.reindex()

	deltas := make([]RangeDelta, len(resolvedChanges))
	for i, c := range resolvedChanges {
		deltas[i] = RangeDelta{OldStart: c.start, OldEnd: c.end, NewLen: len(c.text)}
	}
	// Ascending order (TransformOffset walks deltas left to right).
	for i := 1; i < len(deltas); i++ {
		for j := i; j > 0 && deltas[j].OldStart < deltas[j-1].OldStart; j-- {
			deltas[j], deltas[j-1] = deltas[j-1], deltas[j]
		}
	}
	return deltas, nil
}

// TransformOffset carries a byte offset from before a batch of deltas to
// after it. The second return value is true if the offset fell inside an
// edited span, at or after its OldStart and before its OldEnd (i.e. it was
// consumed by the edit); the returned offset is then not shifted by that
// span.
func TransformOffset(old int, deltas []RangeDelta) (int, bool) {
	shift := 0
	for _, d := range deltas {
		if old < d.OldStart {
			break
		}
		if old < d.OldEnd {
			return old + shift, true
		}
		shift += d.NewLen - (d.OldEnd - d.OldStart)
	}
	return old + shift, false
}
