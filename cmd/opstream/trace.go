package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/opstream/internal/clock"
	"github.com/abelbrown/opstream/internal/coord"
	"github.com/abelbrown/opstream/internal/operation"
	"github.com/abelbrown/opstream/internal/scenario"
)

var (
	traceSpeed   float64
	traceTimeout time.Duration
)

var traceCmd = &cobra.Command{
	Use:   "trace <scenario.yaml>",
	Short: "Print the phase timeline of a scenario without the TUI",
	Long: `Play a scenario headlessly and print every phase change as it happens,
then wait for every finished operation to settle.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func init() {
	traceCmd.Flags().Float64Var(&traceSpeed, "speed", 1, "playback speed multiplier (0 = instant)")
	traceCmd.Flags().DurationVar(&traceTimeout, "timeout", 30*time.Second, "give up waiting for operations to settle")
}

func runTrace(cmd *cobra.Command, args []string) error {
	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	journal, err := openJournal()
	if err != nil {
		return err
	}
	opts := []coord.Option{coord.WithLimit(cfg.Replay.MaxConcurrent)}
	if journal != nil {
		defer journal.Close()
		opts = append(opts, coord.WithJournal(journal))
	}

	reg := operation.NewRegistry(settings(nil))
	defer reg.CloseAll()
	sink := newTraceSink(reg, clock.Real(), os.Stdout)

	sources := make([]coord.Source, 0, len(sc.Operations))
	for _, p := range sc.Playbacks(traceSpeed) {
		sources = append(sources, p)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), sc.Duration()+traceTimeout)
	defer cancel()

	coord.New(sources, opts...).Run(ctx, sink)
	return sink.waitSettled(ctx)
}
