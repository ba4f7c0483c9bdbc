package main

import (
	"github.com/spf13/cobra"

	"github.com/abelbrown/opstream/internal/coord"
)

var replayRate float64

var replayCmd = &cobra.Command{
	Use:   "replay <op-id>",
	Short: "Replay a journaled operation in the TUI",
	Long: `Replay the records of a journaled operation at a fixed rate. The
operation keeps its original ID, so replaying never duplicates the journal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := requireJournal()
		if err != nil {
			return err
		}
		rate := replayRate
		if !cmd.Flags().Changed("rate") {
			rate = cfg.Replay.RecordsPerSecond
		}
		defer st.Close()
		rp, err := st.NewReplay(args[0], rate)
		if err != nil {
			return err
		}
		return runTUI([]coord.Source{rp}, "replay "+rp.Label(), st)
	},
}

func init() {
	replayCmd.Flags().Float64Var(&replayRate, "rate", 0, "records per second (0 = unlimited; default from config)")
}
