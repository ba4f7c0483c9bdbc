package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// eventLine mirrors otel.Event for JSON decoding. Decoding from JSONL keeps
// the viewer usable across schema changes.
type eventLine struct {
	Time  time.Time      `json:"t"`
	Level string         `json:"level"`
	Kind  string         `json:"kind"`
	Comp  string         `json:"comp"`
	OpID  string         `json:"op"`
	From  string         `json:"from"`
	To    string         `json:"to"`
	DurMs float64        `json:"dur_ms"`
	Count int            `json:"count"`
	Query string         `json:"query"`
	Err   string         `json:"err"`
	Msg   string         `json:"msg"`
	Extra map[string]any `json:"extra"`
}

// eventFilter selects lines. Empty fields match everything.
type eventFilter struct {
	kind  string // prefix, e.g. "phase"
	level string // minimum level
	comp  string
	op    string // prefix of the operation ID
}

// levelRank returns a numeric rank for filtering (higher = more severe).
func levelRank(level string) int {
	switch level {
	case "debug":
		return 0
	case "info":
		return 1
	case "warn":
		return 2
	case "error":
		return 3
	default:
		return 0
	}
}

func (f eventFilter) match(ev eventLine) bool {
	if f.kind != "" && !strings.HasPrefix(ev.Kind, f.kind) {
		return false
	}
	if f.level != "" && levelRank(ev.Level) < levelRank(f.level) {
		return false
	}
	if f.comp != "" && ev.Comp != f.comp {
		return false
	}
	if f.op != "" && !strings.HasPrefix(ev.OpID, f.op) {
		return false
	}
	return true
}

var (
	eventsTail   int
	eventsFollow bool
	eventsJSON   bool
	eventsFilter eventFilter
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the structured event log",
	Long: `Print recent lines of ~/.opstream/events.jsonl, optionally filtered,
and optionally follow new ones like tail -f.`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

func init() {
	f := eventsCmd.Flags()
	f.IntVarP(&eventsTail, "tail", "n", 50, "number of recent lines to show")
	f.BoolVarP(&eventsFollow, "follow", "f", false, "follow new lines")
	f.BoolVar(&eventsJSON, "json", false, "output raw JSON lines")
	f.StringVar(&eventsFilter.kind, "kind", "", "filter by event kind prefix (e.g. 'phase')")
	f.StringVar(&eventsFilter.level, "level", "", "minimum level: debug, info, warn, error")
	f.StringVar(&eventsFilter.comp, "comp", "", "filter by component name")
	f.StringVar(&eventsFilter.op, "op", "", "filter by operation ID prefix")
}

func runEvents(cmd *cobra.Command, args []string) error {
	logPath := eventLogPath()
	f, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("%w\n  event log not found at %s; run opstream watch first", err, logPath)
	}
	defer f.Close()

	out := cmd.OutOrStdout()
	for _, l := range readTailLines(f, eventsTail, eventsFilter.match) {
		fmt.Fprintln(out, formatEvent(l.ev, l.raw, eventsJSON))
	}
	if !eventsFollow {
		return nil
	}
	return followEvents(cmd.Context(), f, out)
}

// followEvents prints lines appended to f until ctx is done, waking on
// filesystem writes.
func followEvents(ctx context.Context, f *os.File, out io.Writer) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch event log: %w", err)
	}
	defer w.Close()
	if err := w.Add(f.Name()); err != nil {
		return fmt.Errorf("watch event log: %w", err)
	}

	reader := bufio.NewReader(f)
	var partial []byte
	for {
		// Drain everything written so far. A line without its newline
		// is kept until the rest arrives.
		for {
			chunk, err := reader.ReadBytes('\n')
			partial = append(partial, chunk...)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					return err
				}
				break
			}
			printFollowed(trimLine(partial), out)
			partial = partial[:0]
		}

		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return fmt.Errorf("event log %s was moved", ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch event log: %w", err)
		}
	}
}

func printFollowed(line []byte, out io.Writer) {
	if len(line) == 0 {
		return
	}
	var ev eventLine
	if json.Unmarshal(line, &ev) != nil {
		return
	}
	if eventsFilter.match(ev) {
		fmt.Fprintln(out, formatEvent(ev, line, eventsJSON))
	}
}

func formatEvent(ev eventLine, raw []byte, rawJSON bool) string {
	if rawJSON {
		return string(raw)
	}
	lvl := strings.ToUpper(ev.Level)
	if lvl == "" {
		lvl = "?"
	}

	parts := []string{fmt.Sprintf("%s %-5s [%-9s] %-18s", ev.Time.Format("15:04:05.000"), lvl, ev.Comp, ev.Kind)}

	if ev.OpID != "" {
		parts = append(parts, "op="+shortOp(ev.OpID))
	}
	if ev.From != "" || ev.To != "" {
		parts = append(parts, ev.From+"->"+ev.To)
	}
	if ev.Msg != "" {
		parts = append(parts, "- "+ev.Msg)
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Query != "" {
		parts = append(parts, fmt.Sprintf("q=%q", ev.Query))
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}
	return strings.Join(parts, " ")
}

func shortOp(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type parsedLine struct {
	ev  eventLine
	raw []byte
}

// readTailLines returns the last n lines of r that match.
func readTailLines(r io.Reader, n int, match func(eventLine) bool) []parsedLine {
	if n <= 0 {
		return nil
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)

	ring := make([]parsedLine, 0, n)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev eventLine
		if json.Unmarshal(raw, &ev) != nil {
			continue
		}
		if !match(ev) {
			continue
		}
		// scanner reuses its buffer
		rawCopy := make([]byte, len(raw))
		copy(rawCopy, raw)

		if len(ring) < n {
			ring = append(ring, parsedLine{ev: ev, raw: rawCopy})
		} else {
			copy(ring, ring[1:])
			ring[n-1] = parsedLine{ev: ev, raw: rawCopy}
		}
	}
	return ring
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
