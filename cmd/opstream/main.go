// Command opstream watches long-running operations stream their results and
// shows a stable, flicker-free status for each.
//
// Usage:
//
//	opstream watch <scenario.yaml>   TUI over a scripted scenario
//	opstream trace <scenario.yaml>   Headless phase timeline
//	opstream derive <records.jsonl>  Derived state of a record log
//	opstream ops                     Journaled operations
//	opstream replay <op-id>          TUI over a journaled operation
//	opstream events                  JSONL event log viewer
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/abelbrown/opstream/internal/config"
	"github.com/abelbrown/opstream/internal/logging"
)

const version = "0.3.0"

var (
	configPath string
	verbose    bool

	// cfg is loaded once in PersistentPreRunE.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:     "opstream",
	Short:   "Watch long-running operations without flicker",
	Version: version,
	Long: `opstream consumes the record stream of long-running operations and
renders a stable status for each: in progress, done, settled.

Scenarios are YAML scripts of timed records; every stream is journaled to
SQLite so it can be listed and replayed later.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFrom(configPath)
		if err != nil {
			return err
		}
		cfg.ApplyEnv()
		if verbose {
			logging.InitWriter(os.Stderr, log.DebugLevel)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.Path(), "config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(watchCmd, traceCmd, deriveCmd, opsCmd, replayCmd, eventsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
