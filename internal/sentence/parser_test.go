package sentence

import "testing"

func TestLinearSentenceRuns(t *testing.T) {
	text := "A. B. C."
	origin := 0
	var starts, ends []int
	for {
		r := Parse(text[origin:])
		if r.Outcome != Complete {
			break
		}
		starts = append(starts, origin+r.TrimStart)
		ends = append(ends, origin+r.Length)
		origin += r.Length
	}
	wantStarts := []int{0, 3, 6}
	wantEnds := []int{2, 5, 8}
	if len(starts) != 3 {
		t.Fatalf("expected 3 sentences, got %d (%v)", len(starts), starts)
	}
	for i := range wantStarts {
		if starts[i] != wantStarts[i] || ends[i] != wantEnds[i] {
			t.Errorf("sentence %d: got [%d,%d), want [%d,%d)", i, starts[i], ends[i], wantStarts[i], wantEnds[i])
		}
	}
}

func TestEmptyOnTrailingWhitespace(t *testing.T) {
	r := Parse("   \n\t ")
	if r.Outcome != Empty {
		t.Fatalf("expected Empty, got %v", r.Outcome)
	}
}

func TestEmptyOnTrailingComment(t *testing.T) {
	r := Parse("  (* just a comment *)  ")
	if r.Outcome != Empty {
		t.Fatalf("expected Empty, got %v", r.Outcome)
	}
}

func TestIncompleteWithoutTerminator(t *testing.T) {
	r := Parse("intro n")
	if r.Outcome != Incomplete {
		t.Fatalf("expected Incomplete, got %v", r.Outcome)
	}
}

func TestIncompleteInsideUnterminatedComment(t *testing.T) {
	r := Parse("(* unterminated")
	if r.Outcome != Incomplete {
		t.Fatalf("expected Incomplete, got %v", r.Outcome)
	}
}

func TestIncompleteInsideUnterminatedString(t *testing.T) {
	r := Parse(`Check "abc.`)
	if r.Outcome != Incomplete {
		t.Fatalf("expected Incomplete, got %v", r.Outcome)
	}
}

func TestDotInsideCommentDoesNotTerminate(t *testing.T) {
	r := Parse("(* a. b. *) intro.")
	if r.Outcome != Complete {
		t.Fatalf("expected Complete, got %v", r.Outcome)
	}
	if r.Length != len("(* a. b. *) intro.") {
		t.Fatalf("expected full consumption, got length %d", r.Length)
	}
}

func TestNestedComment(t *testing.T) {
	r := Parse("(* outer (* inner. *) still outer. *) intro.")
	if r.Outcome != Complete {
		t.Fatalf("expected Complete, got %v", r.Outcome)
	}
	if r.Length != len("(* outer (* inner. *) still outer. *) intro.") {
		t.Fatalf("expected nested comment consumed whole, got length %d want %d", r.Length, len("(* outer (* inner. *) still outer. *) intro."))
	}
}

func TestDotInsideStringDoesNotTerminate(t *testing.T) {
	r := Parse(`Check "a.b.c".`)
	if r.Outcome != Complete {
		t.Fatalf("expected Complete, got %v", r.Outcome)
	}
	if r.Length != len(`Check "a.b.c".`) {
		t.Fatalf("got length %d, want %d", r.Length, len(`Check "a.b.c".`))
	}
}

func TestEscapedQuoteInString(t *testing.T) {
	r := Parse(`Check "a""b".`)
	if r.Outcome != Complete {
		t.Fatalf("expected Complete, got %v", r.Outcome)
	}
}

func TestDotInsideBracketDoesNotTerminate(t *testing.T) {
	r := Parse("rewrite [a.b.c] in H.")
	if r.Outcome != Complete {
		t.Fatalf("expected Complete, got %v", r.Outcome)
	}
	if r.Length != len("rewrite [a.b.c] in H.") {
		t.Fatalf("got length %d, want %d", r.Length, len("rewrite [a.b.c] in H."))
	}
}

func TestBulletSentence(t *testing.T) {
	for _, c := range []string{"-", "+", "*", "--", "***"} {
		r := Parse(c + " tac.")
		if r.Outcome != Complete {
			t.Fatalf("bullet %q: expected Complete, got %v", c, r.Outcome)
		}
		if r.Length != len(c) {
			t.Errorf("bullet %q: expected length %d, got %d", c, len(c), r.Length)
		}
	}
}

func TestBraceSentence(t *testing.T) {
	r := Parse("{ intro. }")
	if r.Outcome != Complete || r.Length != 1 {
		t.Fatalf("expected a 1-byte Complete sentence for '{', got %+v", r)
	}
}

func TestEllipsisTerminator(t *testing.T) {
	r := Parse("idtac ...")
	if r.Outcome != Complete {
		t.Fatalf("expected Complete, got %v", r.Outcome)
	}
	if r.Length != len("idtac ...") {
		t.Fatalf("got length %d, want %d", r.Length, len("idtac ..."))
	}
}

func TestLeadingTriviaTrimmed(t *testing.T) {
	r := Parse("  \n (* hi *) intro.")
	if r.Outcome != Complete {
		t.Fatalf("expected Complete, got %v", r.Outcome)
	}
	if r.TrimStart != len("  \n (* hi *) ") {
		t.Errorf("expected TrimStart %d, got %d", len("  \n (* hi *) "), r.TrimStart)
	}
}

func TestIsPassiveText(t *testing.T) {
	cases := map[string]bool{
		"   ":           true,
		"(* comment *)": true,
		"  (* a *) \n ": true,
		"intro.":        false,
		"(* a *) intro": false,
	}
	for in, want := range cases {
		if got := IsPassiveText(in); got != want {
			t.Errorf("IsPassiveText(%q) = %v, want %v", in, got, want)
		}
	}
}
