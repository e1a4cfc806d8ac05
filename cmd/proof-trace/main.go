package main

// proof-trace steps through every sentence in a .v file and prints the full
// proof state at each step. Unlike the MCP/CLI surfaces it drives the STM
// directly sentence-by-sentence via DocumentController.StepForward rather
// than delegating to vsrocqtop's own stepping, so it also exercises the
// SentenceParser. For debugging.

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sanjit/proofctl/internal/controller"
	"github.com/sanjit/proofctl/internal/rocq"
	"github.com/sanjit/proofctl/internal/stm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: proof-trace <file.v> [-- vsrocqtop flags...]\n")
		os.Exit(1)
	}

	file := os.Args[1]
	var vsrocqArgs []string
	for i, arg := range os.Args[2:] {
		if arg == "--" {
			vsrocqArgs = os.Args[i+3:]
			break
		}
	}

	ctx := context.Background()
	registry := rocq.NewRegistry(rocq.Config{VsrocqPath: "vsrocqtop", VsrocqArgs: vsrocqArgs})
	defer registry.Shutdown()

	if err := registry.OpenDoc(ctx, file); err != nil {
		log.Fatalf("open: %v", err)
	}
	defer registry.CloseDoc(file)

	doc, err := registry.GetDoc(file)
	if err != nil {
		log.Fatalf("getDoc: %v", err)
	}

	step := 0
	prevSentenceCount := 0

	for {
		result, err := doc.Controller.StepForward(ctx)
		if err != nil {
			log.Fatalf("stepForward: %v", err)
		}
		switch result.Kind {
		case controller.ResultEmpty, controller.ResultIncomplete:
			goto done
		case controller.ResultNotRunning:
			log.Fatalf("prover not running")
		}

		step++
		sentences := doc.Controller.Sentences()
		var sentenceText string
		if len(sentences) > prevSentenceCount {
			sentenceText = sentences[len(sentences)-1].Text
		}
		prevSentenceCount = len(sentences)

		fmt.Printf("=== Step %d ===\n", step)
		if sentenceText != "" {
			fmt.Printf("> %s\n", sentenceText)
		}
		fmt.Println()

		printGoal(doc.Controller.GetGoal())
		printDiagnostics(doc.Controller.Diagnostics())

		if result.Kind == controller.ResultFailure {
			// A failed add leaves the spine where it was, so stepping again
			// would retry the same sentence forever.
			if result.Failure != nil {
				fmt.Printf("Failure: %s\n", result.Failure.Message)
			}
			fmt.Println()
			break
		}

		fmt.Println()
	}
done:

	fmt.Printf("--- Done: %d steps ---\n", step)
}

func printGoal(gr controller.GoalResult) {
	switch gr.Kind {
	case stm.GoalNotRunning:
		fmt.Println("(prover not running)")
		return
	case stm.GoalNoProof:
		fmt.Println("No goals.")
		return
	case stm.GoalFailure:
		return
	case stm.GoalInterrupted:
		fmt.Println("(interrupted)")
		return
	}

	if len(gr.Goals) > 0 {
		fmt.Printf("Focused Goals (%d):\n", len(gr.Goals))
		for i, g := range gr.Goals {
			if len(gr.Goals) > 1 {
				fmt.Printf("Goal %d:\n", i+1)
			}
			fmt.Print(g.Text)
		}
	} else {
		fmt.Println("Focused Goals (0)")
	}
	fmt.Printf("Unfocused: %d\n", gr.UnfocusedCount)

	if len(gr.Messages) > 0 {
		fmt.Printf("\nMessages (%d):\n", len(gr.Messages))
		for _, m := range gr.Messages {
			fmt.Printf("  %s\n", m)
		}
	}
}

func printDiagnostics(diags []controller.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Printf("\nDiagnostics (%d):\n", len(diags))
	for _, d := range diags {
		severity := "info"
		switch d.Severity {
		case 1:
			severity = "error"
		case 2:
			severity = "warning"
		case 3:
			severity = "info"
		case 4:
			severity = "hint"
		}
		fmt.Printf("  [%s] line %d:%d-%d:%d: %s\n",
			severity,
			d.Range.Start.Line+1, d.Range.Start.Character,
			d.Range.End.Line+1, d.Range.End.Character,
			d.Message)
	}
}
