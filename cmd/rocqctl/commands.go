package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sanjit/proofctl/internal/controller"
	"github.com/sanjit/proofctl/internal/rocq"
)

func newRegistry() *rocq.Registry {
	return rocq.NewRegistry(rocq.Config{VsrocqPath: vsrocqPath, VsrocqArgs: vsrocqArgs})
}

// withDoc opens path, runs fn against the registry, and always closes the
// document and shuts the registry down afterward — the one-shot-process
// shape every subcommand but watch uses.
func withDoc(path string, fn func(ctx context.Context, reg *rocq.Registry) error) error {
	ctx := context.Background()
	reg := newRegistry()
	defer reg.Shutdown()

	if err := reg.OpenDoc(ctx, path); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer reg.CloseDoc(path)

	return fn(ctx, reg)
}

var openCmd = &cobra.Command{
	Use:   "open <file>",
	Short: "Open a file and print its initial proof state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDoc(args[0], func(ctx context.Context, reg *rocq.Registry) error {
			text, err := rocq.DoGetProofState(reg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		})
	},
}

var stepCmd = &cobra.Command{
	Use:   "step <file>",
	Short: "Step forward one sentence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDoc(args[0], func(ctx context.Context, reg *rocq.Registry) error {
			text, err := rocq.DoStepForward(ctx, reg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		})
	},
}

var backCmd = &cobra.Command{
	Use:   "back <file>",
	Short: "Step backward one sentence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDoc(args[0], func(ctx context.Context, reg *rocq.Registry) error {
			text, err := rocq.DoStepBackward(ctx, reg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		})
	},
}

var gotoLine int
var gotoCol int

var gotoCmd = &cobra.Command{
	Use:   "goto <file>",
	Short: "Check the file up to a given line:col",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDoc(args[0], func(ctx context.Context, reg *rocq.Registry) error {
			text, err := rocq.DoCheck(ctx, reg, args[0], gotoLine, gotoCol)
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		})
	},
}

var goalCmd = &cobra.Command{
	Use:   "goal <file>",
	Short: "Print the current goal state without stepping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDoc(args[0], func(ctx context.Context, reg *rocq.Registry) error {
			text, err := rocq.DoGetProofState(reg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Open a file, print its state on every external edit until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := newRegistry()
		defer reg.Shutdown()

		hooks := controller.Hooks{
			Diagnostics: func(diags []controller.Diagnostic) {
				for _, d := range diags {
					fmt.Printf("[diag] line %d: %s\n", d.Range.Start.Line+1, d.Message)
				}
			},
			Message: func(level, text string, rich *string) {
				fmt.Printf("[%s] %s\n", level, text)
			},
			Reset: func() {
				fmt.Println("[reset] prover connection lost")
			},
		}
		if err := reg.OpenDocWithHooks(ctx, path, hooks); err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer reg.CloseDoc(path)

		if err := reg.Watch(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		fmt.Printf("Watching %s, Ctrl-C to stop.\n", path)

		<-ctx.Done()
		fmt.Println("\nStopping.")
		return nil
	},
}

func init() {
	gotoCmd.Flags().IntVar(&gotoLine, "line", 0, "0-indexed line number")
	gotoCmd.Flags().IntVar(&gotoCol, "col", 0, "0-indexed column number")

	rootCmd.AddCommand(openCmd, stepCmd, backCmd, gotoCmd, goalCmd, watchCmd)
}
