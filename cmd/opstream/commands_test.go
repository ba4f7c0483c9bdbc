package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/opstream/internal/event"
	"github.com/abelbrown/opstream/internal/store"
)

const twoOpScenario = `name: two ops
operations:
  - label: search drive
    records:
      - at: 0s
        kind: operation.start
        items:
          - {id: d1, name: Quarterly report, source: drive}
          - {id: d2, name: Roadmap, source: drive}
      - at: 10ms
        kind: operation.end
  - label: crawl wiki
    records:
      - at: 0s
        kind: operation.start
      - at: 10ms
        kind: operation.items
        items:
          - {id: w1, name: Onboarding, source: wiki}
      - at: 20ms
        kind: operation.end
`

// cliEnv points HOME and the journal at a temp dir and returns the journal
// path and the --config flag every invocation should carry.
func cliEnv(t *testing.T) (journal string, configFlag []string) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	journal = filepath.Join(home, "journal.db")
	t.Setenv("OPSTREAM_JOURNAL", journal)
	return journal, []string{"--config", filepath.Join(home, "config.json")}
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

// headless swaps the TUI for one fed from the returned writer.
func headless(t *testing.T) *io.PipeWriter {
	t.Helper()
	pr, pw := io.Pipe()
	saved := programOptions
	programOptions = []tea.ProgramOption{tea.WithInput(pr), tea.WithOutput(io.Discard), tea.WithoutRenderer()}
	t.Cleanup(func() {
		programOptions = saved
		pw.Close()
	})
	return pw
}

func TestWatchJournalsScenario(t *testing.T) {
	journal, flags := cliEnv(t)
	keys := headless(t)

	path := filepath.Join(t.TempDir(), "two.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoOpScenario), 0644))

	done := make(chan error, 1)
	go func() {
		_, err := execute(t, append(flags, "watch", "--speed", "0", path)...)
		done <- err
	}()

	// Both streams report stream.close to the event log once journaled.
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(eventLogPath())
		return err == nil && strings.Count(string(data), `"kind":"stream.close"`) == 2
	}, 5*time.Second, 20*time.Millisecond)

	_, err := keys.Write([]byte("q"))
	require.NoError(t, err)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not quit on q")
	}

	st, err := store.Open(journal)
	require.NoError(t, err)
	defer st.Close()

	ops, err := st.Operations(10)
	require.NoError(t, err)
	require.Len(t, ops, 2)

	records := map[string]int{}
	for _, op := range ops {
		require.Equal(t, "two ops", op.Source)
		require.False(t, op.Ended.IsZero(), "%s should be finished", op.Label)
		records[op.Label] = op.Records
	}
	require.Equal(t, map[string]int{"search drive": 2, "crawl wiki": 3}, records)

	data, err := os.ReadFile(eventLogPath())
	require.NoError(t, err)
	require.Contains(t, string(data), `"kind":"sys.startup"`)
	require.Contains(t, string(data), `"kind":"sys.shutdown"`)
}

// seedJournal writes one finished operation with three records.
func seedJournal(t *testing.T, path string) {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	began := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateOperation(store.Operation{ID: "op-quarterly", Label: "search quarterly", Source: "drive.yaml", Began: began}))
	for seq, r := range []event.Record{
		event.Start(event.Item{ID: "d1", Name: "Quarterly report"}),
		event.Items(event.Item{ID: "d2", Name: "Q3 numbers"}),
		event.End(),
	} {
		_, err := st.AppendRecord("op-quarterly", seq, r)
		require.NoError(t, err)
	}
	require.NoError(t, st.FinishOperation("op-quarterly", began.Add(1500*time.Millisecond)))
}

func TestOpsListsJournal(t *testing.T) {
	journal, flags := cliEnv(t)
	seedJournal(t, journal)

	out, err := execute(t, append(flags, "ops")...)
	require.NoError(t, err)
	for _, want := range []string{"op-quarterly", "search quarterly", "drive.yaml", "1.5s", "3"} {
		require.Contains(t, out, want)
	}
}

func TestOpsEmptyJournal(t *testing.T) {
	_, flags := cliEnv(t)

	out, err := execute(t, append(flags, "ops")...)
	require.NoError(t, err)
	require.Contains(t, out, "no journaled operations")
}

func TestOpsNeedsJournal(t *testing.T) {
	_, flags := cliEnv(t)
	t.Setenv("OPSTREAM_JOURNAL", "off")

	_, err := execute(t, append(flags, "ops")...)
	require.ErrorContains(t, err, "journal is disabled")
}

func TestReplayUnknownOperation(t *testing.T) {
	journal, flags := cliEnv(t)
	seedJournal(t, journal)

	_, err := execute(t, append(flags, "replay", "op-missing")...)
	require.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func TestReplayJournaledOperation(t *testing.T) {
	journal, flags := cliEnv(t)
	seedJournal(t, journal)
	keys := headless(t)

	done := make(chan error, 1)
	go func() {
		_, err := execute(t, append(flags, "replay", "--rate", "0", "op-quarterly")...)
		done <- err
	}()

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(eventLogPath())
		return err == nil && strings.Contains(string(data), `"kind":"stream.close"`)
	}, 5*time.Second, 20*time.Millisecond)

	_, err := keys.Write([]byte("q"))
	require.NoError(t, err)
	require.NoError(t, <-done)

	// Replays keep the journaled ID, so nothing is duplicated.
	st, err := store.Open(journal)
	require.NoError(t, err)
	defer st.Close()
	ops, err := st.Operations(10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Equal(t, 3, ops[0].Records)
}
