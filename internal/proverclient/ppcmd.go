package proverclient

// ppcmd.go — rendering a vsrocqtop Ppcmd pretty-printer tree to plain
// text, and parsing prover/proofView notifications.

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sanjit/proofctl/internal/stm"
)

// renderPpcmd renders a Ppcmd tree (or a plain string) to text.
func renderPpcmd(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}

	var arr []json.RawMessage
	if json.Unmarshal(raw, &arr) != nil || len(arr) == 0 {
		return string(raw)
	}
	var tag string
	if json.Unmarshal(arr[0], &tag) != nil {
		return string(raw)
	}

	switch tag {
	case "Ppcmd_string":
		if len(arr) > 1 {
			var text string
			json.Unmarshal(arr[1], &text)
			return text
		}
	case "Ppcmd_glue":
		if len(arr) > 1 {
			var children []json.RawMessage
			if json.Unmarshal(arr[1], &children) == nil {
				var sb strings.Builder
				for _, c := range children {
					sb.WriteString(renderPpcmd(c))
				}
				return sb.String()
			}
		}
	case "Ppcmd_box", "Ppcmd_tag":
		if len(arr) > 2 {
			return renderPpcmd(arr[2])
		}
		if len(arr) > 1 {
			return renderPpcmd(arr[1])
		}
	case "Ppcmd_print_break":
		// ["Ppcmd_print_break", nspaces, offset]
		if len(arr) > 1 {
			var n int
			json.Unmarshal(arr[1], &n)
			return strings.Repeat(" ", n)
		}
		return " "
	case "Ppcmd_force_newline":
		return "\n"
	case "Ppcmd_comment":
		if len(arr) > 1 {
			var parts []string
			json.Unmarshal(arr[1], &parts)
			return strings.Join(parts, " ")
		}
	}
	return ""
}

func renderGoalText(hyps []string, conclusion string) string {
	var sb strings.Builder
	for _, h := range hyps {
		fmt.Fprintf(&sb, "  %s\n", h)
	}
	sb.WriteString("  ────────────────────\n")
	fmt.Fprintf(&sb, "  %s\n", conclusion)
	return sb.String()
}

type rawGoal struct {
	ID         json.RawMessage   `json:"id"`
	Goal       json.RawMessage   `json:"goal"`
	Hypotheses []json.RawMessage `json:"hypotheses"`
}

// parseProofView parses a prover/proofView notification's params into a
// GoalSnapshot. stateID is supplied by the caller, since the snapshot
// itself carries no state identity in the wire format.
func parseProofView(stateID string, params json.RawMessage) *stm.GoalSnapshot {
	var raw struct {
		Proof struct {
			Goals          []rawGoal `json:"goals"`
			ShelvedGoals   []rawGoal `json:"shelvedGoals"`
			GivenUpGoals   []rawGoal `json:"givenUpGoals"`
			UnfocusedGoals []rawGoal `json:"unfocusedGoals"`
		} `json:"proof"`
		Messages   []json.RawMessage `json:"messages"`
		PPMessages []json.RawMessage `json:"pp_messages"`
	}
	if err := json.Unmarshal(params, &raw); err != nil {
		return nil
	}

	unfocused := len(raw.Proof.UnfocusedGoals) - len(raw.Proof.Goals)
	if unfocused < 0 {
		unfocused = 0
	}
	snap := &stm.GoalSnapshot{
		StateID:        stateID,
		UnfocusedCount: unfocused,
		ShelvedCount:   len(raw.Proof.ShelvedGoals),
		GivenUpCount:   len(raw.Proof.GivenUpGoals),
	}
	for _, g := range raw.Proof.Goals {
		id := strings.TrimSpace(string(g.ID))
		conclusion := renderPpcmd(g.Goal)
		var hyps []string
		for _, h := range g.Hypotheses {
			hyps = append(hyps, renderPpcmd(h))
		}
		snap.Goals = append(snap.Goals, stm.Goal{ID: id, Text: renderGoalText(hyps, conclusion)})
	}
	for _, m := range raw.Messages {
		var pair []json.RawMessage
		if json.Unmarshal(m, &pair) == nil && len(pair) >= 2 {
			var severity int
			if json.Unmarshal(pair[0], &severity) == nil {
				if text := renderPpcmd(pair[1]); text != "" {
					snap.Messages = append(snap.Messages, text)
				}
				continue
			}
		}
		if text := renderPpcmd(m); text != "" {
			snap.Messages = append(snap.Messages, text)
		}
	}
	for _, m := range raw.PPMessages {
		var pair []json.RawMessage
		if json.Unmarshal(m, &pair) == nil && len(pair) >= 2 {
			if text := renderPpcmd(pair[1]); text != "" {
				snap.Messages = append(snap.Messages, text)
			}
		}
	}
	return snap
}

// diagnostic mirrors one textDocument/publishDiagnostics entry.
type diagnostic struct {
	Range struct {
		Start struct{ Line, Character int } `json:"start"`
		End   struct{ Line, Character int } `json:"end"`
	} `json:"range"`
	Severity int    `json:"severity"`
	Message  string `json:"message"`
}

func parseDiagnostics(params json.RawMessage) []diagnostic {
	var body struct {
		Diagnostics []diagnostic `json:"diagnostics"`
	}
	if err := json.Unmarshal(params, &body); err != nil {
		return nil
	}
	return body.Diagnostics
}
