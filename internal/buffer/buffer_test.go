package buffer

import "testing"

func TestOffsetPositionRoundTrip(t *testing.T) {
	b := New("A. B.\nC.\r\nD.", 1)
	cases := []int{0, 2, 5, 6, 8, 10, len(b.Text())}
	for _, off := range cases {
		pos := b.PositionAt(off)
		got := b.OffsetAt(pos)
		if got != off {
			t.Errorf("offset %d -> pos %+v -> offset %d, want round trip", off, pos, got)
		}
	}
}

func TestLineEndingVarieties(t *testing.T) {
	b := New("a\nb\rc\r\nd", 1)
	if b.LineCount() != 4 {
		t.Fatalf("expected 4 lines, got %d", b.LineCount())
	}
	if got := b.PositionAt(2); got.Line != 1 {
		t.Errorf("expected line 1 after \\n, got %+v", got)
	}
}

func TestUTF16Columns(t *testing.T) {
	// U+1F600 (😀) is a surrogate pair in UTF-16: 2 code units.
	b := New("😀x", 1)
	pos := b.PositionAt(len("😀"))
	if pos.Character != 2 {
		t.Fatalf("expected character 2 after astral rune, got %d", pos.Character)
	}
	off := b.OffsetAt(Position{Line: 0, Character: 2})
	if off != len("😀") {
		t.Fatalf("expected offset %d, got %d", len("😀"), off)
	}
}

func TestApplyStaleVersionRejected(t *testing.T) {
	b := New("A.", 5)
	_, err := b.Apply([]ContentChange{{Text: "B."}}, 5)
	if err != ErrStaleEdit {
		t.Fatalf("expected ErrStaleEdit, got %v", err)
	}
	_, err = b.Apply([]ContentChange{{Text: "B."}}, 4)
	if err != ErrStaleEdit {
		t.Fatalf("expected ErrStaleEdit for version decrease, got %v", err)
	}
}

func TestApplyReverseOrderBatch(t *testing.T) {
	b := New("AAAA BBBB CCCC", 1)
	// Two changes referencing the pre-batch document: replace "CCCC" and
	// "AAAA" in the same call, passed in forward document order. Apply
	// must process them so neither offset is invalidated by the other.
	changes := []ContentChange{
		{Range: &Range{Start: Position{0, 0}, End: Position{0, 4}}, Text: "X"},
		{Range: &Range{Start: Position{0, 10}, End: Position{0, 14}}, Text: "Y"},
	}
	deltas, err := b.Apply(changes, 2)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if b.Text() != "X BBBB Y" {
		t.Fatalf("got %q", b.Text())
	}
	if len(deltas) != 2 {
		t.Fatalf("expected 2 deltas, got %d", len(deltas))
	}
}

func TestTransformOffsetShiftsAfterEdit(t *testing.T) {
	b := New("A. B. C.", 1)
	// Replace "B" (offset 3..4) with "BB".
	deltas, err := b.Apply([]ContentChange{
		{Range: &Range{Start: Position{0, 3}, End: Position{0, 4}}, Text: "BB"},
	}, 2)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// Offset 6 (start of "C.") in the old document should shift to 7.
	newOff, consumed := TransformOffset(6, deltas)
	if consumed {
		t.Fatalf("offset 6 should not be consumed")
	}
	if newOff != 7 {
		t.Fatalf("expected shifted offset 7, got %d", newOff)
	}
}

func TestTransformOffsetConsumed(t *testing.T) {
	deltas := []RangeDelta{{OldStart: 3, OldEnd: 5, NewLen: 1}}
	_, consumed := TransformOffset(4, deltas)
	if !consumed {
		t.Fatalf("offset inside edited span should be reported consumed")
	}
}

func TestWholeDocumentReplace(t *testing.T) {
	b := New("old text", 1)
	_, err := b.Apply([]ContentChange{{Text: "new text"}}, 2)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if b.Text() != "new text" {
		t.Fatalf("got %q", b.Text())
	}
	if b.Version() != 2 {
		t.Fatalf("expected version 2, got %d", b.Version())
	}
}
