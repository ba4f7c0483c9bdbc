package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var opsLimit int

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List journaled operations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := requireJournal()
		if err != nil {
			return err
		}
		defer st.Close()

		ops, err := st.Operations(opsLimit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no journaled operations")
			return nil
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "LABEL", "SOURCE", "BEGAN", "DURATION", "RECORDS")
		for _, op := range ops {
			dur := "open"
			if !op.Ended.IsZero() {
				dur = op.Ended.Sub(op.Began).Round(time.Millisecond).String()
			}
			t.Row(op.ID, op.Label, op.Source, op.Began.Local().Format("2006-01-02 15:04:05"), dur, strconv.Itoa(op.Records))
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.String())
		return nil
	},
}

func init() {
	opsCmd.Flags().IntVar(&opsLimit, "limit", 20, "maximum operations to list")
}
