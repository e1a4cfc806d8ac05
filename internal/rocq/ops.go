package rocq

// ops.go — the Do* operation surface, one function per client-facing
// command, each resolving a path to its Doc and driving the
// DocumentController. Operations return plain strings; the MCP-specific
// wrapping lives in cmd/rocq-mcp, the only caller that needs it.

import (
	"context"
	"fmt"
	"strings"

	"github.com/sanjit/proofctl/internal/buffer"
)

// DoCheck interprets the document up to (line, col), inclusive of
// whatever sentence ends there.
func DoCheck(ctx context.Context, r *Registry, path string, line, col int) (string, error) {
	doc, err := r.GetDoc(path)
	if err != nil {
		return "", err
	}
	offset := doc.Controller.OffsetAt(buffer.Position{Line: line, Character: col})
	if _, err := doc.Controller.InterpretToPoint(ctx, offset); err != nil {
		return "", err
	}
	cur := doc.Controller.GetGoal()
	doc.takePrevGoal(cur)
	return FormatFull(cur, doc.Controller.Diagnostics()), nil
}

// DoCheckAll interprets the entire document.
func DoCheckAll(ctx context.Context, r *Registry, path string) (string, error) {
	doc, err := r.GetDoc(path)
	if err != nil {
		return "", err
	}
	if _, err := doc.Controller.InterpretToEnd(ctx); err != nil {
		return "", err
	}
	cur := doc.Controller.GetGoal()
	doc.takePrevGoal(cur)
	return FormatFull(cur, doc.Controller.Diagnostics()), nil
}

// DoStepForward advances by one sentence and reports the delta against
// the goal state before the step.
func DoStepForward(ctx context.Context, r *Registry, path string) (string, error) {
	doc, err := r.GetDoc(path)
	if err != nil {
		return "", err
	}
	if _, err := doc.Controller.StepForward(ctx); err != nil {
		return "", err
	}
	cur := doc.Controller.GetGoal()
	prev := doc.takePrevGoal(cur)
	return FormatDelta(prev, cur, doc.Controller.Diagnostics()), nil
}

// DoStepBackward rewinds by one sentence.
func DoStepBackward(ctx context.Context, r *Registry, path string) (string, error) {
	doc, err := r.GetDoc(path)
	if err != nil {
		return "", err
	}
	if _, err := doc.Controller.StepBackward(ctx); err != nil {
		return "", err
	}
	cur := doc.Controller.GetGoal()
	prev := doc.takePrevGoal(cur)
	return FormatDelta(prev, cur, doc.Controller.Diagnostics()), nil
}

// DoGetProofState reports the current goal state without stepping.
func DoGetProofState(r *Registry, path string) (string, error) {
	doc, err := r.GetDoc(path)
	if err != nil {
		return "", err
	}
	cur := doc.Controller.GetGoal()
	return FormatFull(cur, doc.Controller.Diagnostics()), nil
}

// QueryMethod discriminates the read-only query tools;
// about/check_type/locate/print share one non-mutating request shape.
type QueryMethod int

const (
	QueryAbout QueryMethod = iota
	QueryCheckType
	QueryLocate
	QueryPrint
)

// DoQuery issues a read-only query (rocq_about, rocq_check_type,
// rocq_locate, rocq_print) and renders its result.
func DoQuery(ctx context.Context, r *Registry, path string, method QueryMethod, pattern string) (string, error) {
	doc, err := r.GetDoc(path)
	if err != nil {
		return "", err
	}
	var text string
	switch method {
	case QueryAbout:
		text, err = doc.Controller.SearchAbout(ctx, pattern)
	case QueryCheckType:
		text, err = doc.Controller.Check(ctx, pattern)
	case QueryLocate:
		text, err = doc.Controller.Locate(ctx, pattern)
	case QueryPrint:
		text, err = doc.Controller.Print(ctx, pattern)
	default:
		return "", fmt.Errorf("unknown query method %v", method)
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// DoSearch issues prover/search and renders every streamed result,
// bypassing the DocumentController for the document-structure side
// channel.
func DoSearch(ctx context.Context, r *Registry, path, pattern string) (string, error) {
	doc, err := r.GetDoc(path)
	if err != nil {
		return "", err
	}
	client := doc.currentClient()
	if client == nil {
		return "", fmt.Errorf("prover not running: %s", path)
	}
	hits, err := client.Search(ctx, pattern)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "No results found.", nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Search Results: %d ===\n", len(hits))
	for _, h := range hits {
		fmt.Fprintf(&sb, "%s : %s\n", h.Name, h.Statement)
	}
	return sb.String(), nil
}

// DoReset recovers a document's prover connection, clearing its spine
// but leaving the buffered text untouched.
func DoReset(ctx context.Context, r *Registry, path string) (string, error) {
	doc, err := r.GetDoc(path)
	if err != nil {
		return "", err
	}
	if err := doc.Controller.Reset(ctx); err != nil {
		return "", err
	}
	doc.prevMu.Lock()
	doc.prevGoal = doc.Controller.GetGoal()
	doc.prevMu.Unlock()
	return "Reset " + path, nil
}

// DoInterrupt asks the prover to abandon its in-flight request.
func DoInterrupt(r *Registry, path string) (string, error) {
	doc, err := r.GetDoc(path)
	if err != nil {
		return "", err
	}
	doc.Controller.Interrupt()
	return "Interrupt requested for " + path, nil
}

// DoLtacProfile requests Ltac profiling results for stateID (nil for
// cumulative results), delivered asynchronously via Hooks.LtacProf.
func DoLtacProfile(r *Registry, path string, stateID *string) (string, error) {
	doc, err := r.GetDoc(path)
	if err != nil {
		return "", err
	}
	if err := doc.Controller.RequestLtacProfResults(stateID); err != nil {
		return "", err
	}
	return "Ltac profiling requested for " + path, nil
}

// DoDocumentProofs reports the document's proof structure.
func DoDocumentProofs(ctx context.Context, r *Registry, path string) (string, error) {
	doc, err := r.GetDoc(path)
	if err != nil {
		return "", err
	}
	client := doc.currentClient()
	if client == nil {
		return "", fmt.Errorf("prover not running: %s", path)
	}
	proofs, err := client.DocumentProofs(ctx)
	if err != nil {
		return "", fmt.Errorf("parse documentProofs: %w", err)
	}
	if len(proofs) == 0 {
		return "No proofs found in " + path, nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Proofs: %d ===\n", len(proofs))
	for i, p := range proofs {
		fmt.Fprintf(&sb, "\n--- Proof %d (lines %d-%d) ---\n",
			i+1, p.Range.Start.Line+1, p.Range.End.Line+1)
		fmt.Fprintf(&sb, "Statement: %s\n", p.Statement.Statement)
		if len(p.Steps) > 0 {
			sb.WriteString("Steps:\n")
			for _, s := range p.Steps {
				fmt.Fprintf(&sb, "  L%d: %s\n", s.Range.Start.Line+1, s.Tactic)
			}
		}
	}
	return sb.String(), nil
}
