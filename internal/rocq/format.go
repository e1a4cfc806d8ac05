package rocq

// format.go — rendering a controller.GoalResult and its diagnostics to
// human-readable text, in full and delta forms.

import (
	"fmt"
	"strings"

	"github.com/sanjit/proofctl/internal/controller"
	"github.com/sanjit/proofctl/internal/stm"
)

// formatBackgroundCounts summarizes non-zero background goal counts, or
// "" if there are none.
func formatBackgroundCounts(gr controller.GoalResult) string {
	var parts []string
	if gr.UnfocusedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d unfocused", gr.UnfocusedCount))
	}
	if gr.ShelvedCount > 0 {
		parts = append(parts, fmt.Sprintf("%d shelved", gr.ShelvedCount))
	}
	if gr.GivenUpCount > 0 {
		parts = append(parts, fmt.Sprintf("%d given up", gr.GivenUpCount))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ", ")
}

func writeGoals(sb *strings.Builder, goals []stm.Goal) {
	if len(goals) == 1 {
		sb.WriteString("Goal:\n")
		sb.WriteString(goals[0].Text)
		return
	}
	for i, g := range goals {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(sb, "Goal %d of %d:\n", i+1, len(goals))
		sb.WriteString(g.Text)
	}
}

func formatDiagnostics(sb *strings.Builder, diags []controller.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	sb.WriteString("\n=== Diagnostics ===\n")
	for _, d := range diags {
		fmt.Fprintf(sb, "[error] line %d:%d-%d:%d: %s\n",
			d.Range.Start.Line+1, d.Range.Start.Character,
			d.Range.End.Line+1, d.Range.End.Character,
			d.Message)
	}
}

// FormatFull renders the complete proof state: goals, background
// counts, messages, and diagnostics.
func FormatFull(gr controller.GoalResult, diags []controller.Diagnostic) string {
	var sb strings.Builder

	switch gr.Kind {
	case stm.GoalNotRunning:
		sb.WriteString("Prover not running.\n")
	case stm.GoalFailure:
		fmt.Fprintf(&sb, "Error: %s\n", gr.Message)
	case stm.GoalInterrupted:
		sb.WriteString("Interrupted.\n")
	default:
		bg := formatBackgroundCounts(gr)
		if len(gr.Goals) == 0 {
			if bg == "" {
				sb.WriteString("Proof complete!\n")
			} else {
				fmt.Fprintf(&sb, "No focused goals. %s remaining.\n", bg)
			}
		} else {
			writeGoals(&sb, gr.Goals)
			if bg != "" {
				fmt.Fprintf(&sb, "\n(+ %s)\n", bg)
			}
		}
		if len(gr.Messages) > 0 {
			sb.WriteString("\n=== Messages ===\n")
			for _, m := range gr.Messages {
				fmt.Fprintf(&sb, "%s\n", m)
			}
		}
	}

	formatDiagnostics(&sb, diags)

	if sb.Len() == 0 {
		return "No goals or diagnostics."
	}
	return sb.String()
}

// FormatDelta renders cur against prev, calling out what changed (goal
// count, proof completion, new focused goals) rather than re-printing
// the full goal text every step. Used after step forward/backward.
func FormatDelta(prev, cur controller.GoalResult, diags []controller.Diagnostic) string {
	var sb strings.Builder

	switch {
	case cur.Kind == stm.GoalNotRunning:
		sb.WriteString("Prover not running.\n")
	case cur.Kind == stm.GoalFailure:
		fmt.Fprintf(&sb, "Error: %s\n", cur.Message)
	case cur.Kind == stm.GoalInterrupted:
		sb.WriteString("Interrupted.\n")
	case len(cur.Goals) == 0 && len(prev.Goals) > 0:
		bg := formatBackgroundCounts(cur)
		if bg == "" {
			sb.WriteString("Proof complete!\n")
		} else {
			fmt.Fprintf(&sb, "Goal closed. %s remaining.\n", bg)
		}
	case len(cur.Goals) == 0:
		sb.WriteString("No goals.\n")
	case prev.Kind != stm.GoalProofView || len(prev.Goals) == 0:
		writeGoals(&sb, cur.Goals)
	case len(cur.Goals) < len(prev.Goals):
		fmt.Fprintf(&sb, "Subgoal complete (%d remaining):\n", len(cur.Goals))
		writeGoals(&sb, cur.Goals)
	case len(cur.Goals) > len(prev.Goals):
		fmt.Fprintf(&sb, "New focused goal(s) (%d total):\n", len(cur.Goals))
		writeGoals(&sb, cur.Goals)
	case len(cur.Goals) == len(prev.Goals) && sameGoal(prev.Goals[0], cur.Goals[0]):
		sb.WriteString("No change.\n")
	default:
		writeGoals(&sb, cur.Goals)
	}

	if bg := formatBackgroundCounts(cur); bg != "" && cur.Kind == stm.GoalProofView && len(cur.Goals) > 0 {
		fmt.Fprintf(&sb, "\n(+ %s)\n", bg)
	}
	if len(cur.Messages) > 0 {
		sb.WriteString("\n=== Messages ===\n")
		for _, m := range cur.Messages {
			fmt.Fprintf(&sb, "%s\n", m)
		}
	}

	formatDiagnostics(&sb, diags)

	if sb.Len() == 0 {
		return "No goals or diagnostics."
	}
	return sb.String()
}

func sameGoal(a, b stm.Goal) bool {
	return a.ID == b.ID && a.Text == b.Text
}
