package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/abelbrown/opstream/internal/config"
	"github.com/abelbrown/opstream/internal/coord"
	"github.com/abelbrown/opstream/internal/logging"
	"github.com/abelbrown/opstream/internal/operation"
	"github.com/abelbrown/opstream/internal/otel"
	"github.com/abelbrown/opstream/internal/scenario"
	"github.com/abelbrown/opstream/internal/store"
	"github.com/abelbrown/opstream/internal/ui"
)

var watchSpeed float64

// programOptions configures the TUI program. Tests run it headless.
var programOptions = []tea.ProgramOption{tea.WithAltScreen()}

var watchCmd = &cobra.Command{
	Use:   "watch <scenario.yaml>",
	Short: "Play a scenario in the TUI",
	Long: `Play every operation of a scenario file concurrently and watch their
status in the TUI. Records are journaled unless the journal is disabled.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Float64Var(&watchSpeed, "speed", 1, "playback speed multiplier (0 = instant)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}
	sources := make([]coord.Source, 0, len(sc.Operations))
	for _, p := range sc.Playbacks(watchSpeed) {
		sources = append(sources, p)
	}
	journal, err := openJournal()
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}
	return runTUI(sources, sc.Name, journal)
}

// runTUI runs sources through the coordinator into the TUI until the user
// quits. journal may be nil.
func runTUI(sources []coord.Source, title string, journal *store.Store) error {
	if !verbose {
		if err := logging.Init(filepath.Join(config.Dir(), "logs"), version); err != nil {
			return err
		}
	}

	obs, ring, closeEvents, err := openEventLog()
	if err != nil {
		return err
	}
	defer closeEvents()

	opts := []coord.Option{coord.WithLimit(cfg.Replay.MaxConcurrent), coord.WithLogger(obs)}
	if journal != nil {
		opts = append(opts, coord.WithJournal(journal))
	}

	reg := operation.NewRegistry(settings(obs))
	defer reg.CloseAll()
	bridge := ui.NewBridge()
	defer bridge.Close()

	app := ui.NewApp(ui.Config{
		Registry: reg,
		Bridge:   bridge,
		Quiet:    cfg.DebounceDuration(),
		Logger:   obs,
		Ring:     ring,
		Title:    title,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	program := tea.NewProgram(app, programOptions...)
	c := coord.New(sources, opts...)
	c.Start(ctx, program)

	_, err = program.Run()

	// Stop streams before tearing down the registry.
	cancel()
	c.Wait()

	if err != nil {
		obs.Error(otel.KindError, "main", err)
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
