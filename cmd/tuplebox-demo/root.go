package main

import (
	"os"

	"github.com/colinhart/tuplebox"
	"github.com/colinhart/tuplebox/internal/obslog"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	workDir string
)

// rootCmd follows the teacher's internal/cli/root.go shape: a
// PersistentPreRun that wires logging before any subcommand runs, global
// flags bound in init().
var rootCmd = &cobra.Command{
	Use:   "tuplebox-demo",
	Short: "Worked example for the tuplebox sandboxing library",
	Long: `tuplebox-demo registers a couple of functions as sandboxed callables and
runs them through the real provisioning and dispatch path, the same one an
application embedding the tuplebox package would use.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := obslog.New("")
		if verbose {
			logger.SetLevel(obslog.LevelInfo)
		} else {
			logger.SetLevel(obslog.LevelOK)
		}
		tuplebox.SetLogger(logger)
		tuplebox.SetWorkDir(workDir)
	},
}

// Execute runs the CLI, exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show sandbox provisioning info, not just OK/WARN/ERROR")
	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", ".tuplebox", "Directory holding sandbox manifests, directories and sockets")
}
