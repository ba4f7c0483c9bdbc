package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abelbrown/opstream/internal/event"
	"github.com/abelbrown/opstream/internal/reconcile"
)

var (
	deriveStrict bool
	deriveSteps  bool
)

var deriveCmd = &cobra.Command{
	Use:   "derive <records.jsonl>",
	Short: "Print the logical state derived from a record log",
	Long: `Read one JSON record per line ("-" for stdin), append them to an event
log and print the derived logical state. With --steps the state is printed
after every record.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := io.Reader(cmd.InOrStdin())
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		return derive(in, cmd.OutOrStdout(), deriveStrict, deriveSteps)
	},
}

func init() {
	deriveCmd.Flags().BoolVar(&deriveStrict, "strict", false, "reject operation.end before operation.start")
	deriveCmd.Flags().BoolVar(&deriveSteps, "steps", false, "print the state after every record")
}

func derive(in io.Reader, out io.Writer, strict, steps bool) error {
	var opts []event.LogOption
	if strict {
		opts = append(opts, event.WithStrictOrder())
	}
	log := event.NewLog(opts...)
	var cur reconcile.Cursor

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		r, err := event.ParseRecord([]byte(raw))
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := log.Append(r); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if steps {
			fmt.Fprintf(out, "%4d %-16s %s\n", line, r.Kind, describeState(cur.Advance(log.Snapshot())))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	st := cur.Advance(log.Snapshot())
	fmt.Fprintf(out, "records=%d %s\n", log.Len(), describeState(st))
	for _, it := range st.Items {
		fmt.Fprintf(out, "  %s\n", it.DisplayName())
	}
	return nil
}

func describeState(s reconcile.LogicalState) string {
	return fmt.Sprintf("started=%t ended=%t items=%d", s.Started, s.Ended, len(s.Items))
}
