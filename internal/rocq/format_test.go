package rocq

import (
	"strings"
	"testing"

	"github.com/sanjit/proofctl/internal/controller"
	"github.com/sanjit/proofctl/internal/stm"
)

func resultText(s string) string { return s }

func TestFormatFullProofComplete(t *testing.T) {
	gr := controller.GoalResult{Kind: stm.GoalNoProof}
	got := resultText(FormatFull(gr, nil))
	if !strings.Contains(got, "Proof complete!") {
		t.Errorf("expected proof-complete message, got %q", got)
	}
}

func TestFormatFullWithGoal(t *testing.T) {
	gr := controller.GoalResult{
		Kind:  stm.GoalProofView,
		Goals: []stm.Goal{{ID: "1", Text: "  n : nat\n  ────\n  n = n\n"}},
	}
	got := resultText(FormatFull(gr, nil))
	if !strings.Contains(got, "Goal:") || !strings.Contains(got, "n = n") {
		t.Errorf("expected rendered goal, got %q", got)
	}
}

func TestFormatFullWithDiagnostics(t *testing.T) {
	gr := controller.GoalResult{Kind: stm.GoalNoProof}
	diags := []controller.Diagnostic{{Message: "Unable to unify."}}
	got := resultText(FormatFull(gr, diags))
	if !strings.Contains(got, "=== Diagnostics ===") || !strings.Contains(got, "Unable to unify.") {
		t.Errorf("expected diagnostics section, got %q", got)
	}
}

func TestFormatFullNotRunning(t *testing.T) {
	gr := controller.GoalResult{Kind: stm.GoalNotRunning}
	got := resultText(FormatFull(gr, nil))
	if !strings.Contains(got, "not running") {
		t.Errorf("expected not-running message, got %q", got)
	}
}

func TestFormatDeltaGoalClosed(t *testing.T) {
	prev := controller.GoalResult{
		Kind:  stm.GoalProofView,
		Goals: []stm.Goal{{ID: "1", Text: "g1\n"}},
	}
	cur := controller.GoalResult{Kind: stm.GoalNoProof}
	got := resultText(FormatDelta(prev, cur, nil))
	if !strings.Contains(got, "Proof complete!") {
		t.Errorf("expected proof-complete message, got %q", got)
	}
}

func TestFormatDeltaSubgoalComplete(t *testing.T) {
	prev := controller.GoalResult{
		Kind: stm.GoalProofView,
		Goals: []stm.Goal{
			{ID: "1", Text: "g1\n"},
			{ID: "2", Text: "g2\n"},
		},
	}
	cur := controller.GoalResult{
		Kind:  stm.GoalProofView,
		Goals: []stm.Goal{{ID: "2", Text: "g2\n"}},
	}
	got := resultText(FormatDelta(prev, cur, nil))
	if !strings.Contains(got, "Subgoal complete") {
		t.Errorf("expected subgoal-complete message, got %q", got)
	}
}

func TestFormatDeltaNoChange(t *testing.T) {
	pv := controller.GoalResult{
		Kind:  stm.GoalProofView,
		Goals: []stm.Goal{{ID: "1", Text: "g1\n"}},
	}
	got := resultText(FormatDelta(pv, pv, nil))
	if !strings.Contains(got, "No change.") {
		t.Errorf("expected no-change message, got %q", got)
	}
}

func TestFormatDeltaFailure(t *testing.T) {
	prev := controller.GoalResult{Kind: stm.GoalProofView, Goals: []stm.Goal{{ID: "1", Text: "g1\n"}}}
	cur := controller.GoalResult{Kind: stm.GoalFailure, Message: "Unable to unify."}
	got := resultText(FormatDelta(prev, cur, nil))
	if !strings.Contains(got, "Unable to unify.") {
		t.Errorf("expected failure message, got %q", got)
	}
}
