// Command rocqctl is a Cobra CLI driving a DocumentController
// programmatically: open/step/back/goto/goal/watch, each a one-shot
// process unless otherwise noted. Useful for scripting and for
// exercising the fsnotify-backed auto-sync path (watch).
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var vsrocqPath string
var vsrocqArgs []string

var rootCmd = &cobra.Command{
	Use:   "rocqctl",
	Short: "Drive a Rocq proof document from the command line",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&vsrocqPath, "vsrocqtop", "vsrocqtop", "path to the vsrocqtop binary")
	rootCmd.PersistentFlags().StringArrayVar(&vsrocqArgs, "vsrocqtop-arg", nil, "extra argument passed through to vsrocqtop (repeatable)")
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
