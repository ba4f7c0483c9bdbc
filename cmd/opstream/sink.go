package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/opstream/internal/clock"
	"github.com/abelbrown/opstream/internal/logging"
	"github.com/abelbrown/opstream/internal/operation"
	"github.com/abelbrown/opstream/internal/phase"
	"github.com/abelbrown/opstream/internal/ui"
)

var (
	labelStyle  = lipgloss.NewStyle().Bold(true)
	phaseStyles = map[phase.Phase]lipgloss.Style{
		phase.InProgress:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24")),
		phase.JustFinished: lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true),
		phase.Settled:      lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	}
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// traceSink stands in for the TUI program in headless mode. It applies
// stream messages to the registry and prints a phase timeline.
type traceSink struct {
	reg   *operation.Registry
	clk   clock.Clock
	start time.Time

	mu  sync.Mutex
	out io.Writer

	settled chan struct{} // signalled on every settle
}

func newTraceSink(reg *operation.Registry, clk clock.Clock, out io.Writer) *traceSink {
	s := &traceSink{
		reg:     reg,
		clk:     clk,
		start:   clk.Now(),
		out:     out,
		settled: make(chan struct{}, 1),
	}
	reg.OnPhase(func(id string, p phase.Phase) {
		s.printf(id, "%s", phaseStyles[p].Render(p.String()))
	})
	reg.OnSettled(func(string) {
		select {
		case s.settled <- struct{}{}:
		default:
		}
	})
	return s
}

// Send implements coord.Sender.
func (s *traceSink) Send(msg tea.Msg) {
	switch msg := msg.(type) {
	case ui.OperationBegan:
		if _, err := s.reg.BeginID(msg.ID, msg.Label); err != nil {
			logging.Warn("trace: begin failed", "op", msg.ID, "err", err)
			return
		}
		s.printf(msg.ID, "began")
	case ui.RecordArrived:
		inst, ok := s.reg.Get(msg.ID)
		if !ok {
			return
		}
		if err := inst.Observe(msg.Record); err != nil {
			s.printf(msg.ID, "%s", errStyle.Render(err.Error()))
		}
	case ui.StreamClosed:
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			s.printf(msg.ID, "%s", errStyle.Render("stream: "+msg.Err.Error()))
		}
	}
}

func (s *traceSink) printf(id, format string, args ...any) {
	label := id
	if inst, ok := s.reg.Get(id); ok {
		label = inst.Label()
	}
	elapsed := s.clk.Now().Sub(s.start)

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "%8.3fs  %s  %s\n", elapsed.Seconds(), labelStyle.Render(fmt.Sprintf("%-24s", label)), fmt.Sprintf(format, args...))
}

// unsettled counts operations that have ended but not yet settled.
// Operations whose stream never delivered an end stay in progress forever
// and are not waited for.
func (s *traceSink) unsettled() int {
	n := 0
	for _, v := range s.reg.Views() {
		if v.Ended && v.Phase != phase.Settled {
			n++
		}
	}
	return n
}

// waitSettled blocks until every ended operation has settled or ctx is done.
func (s *traceSink) waitSettled(ctx context.Context) error {
	for s.unsettled() > 0 {
		select {
		case <-s.settled:
		case <-ctx.Done():
			return fmt.Errorf("%d operation(s) did not settle: %w", s.unsettled(), ctx.Err())
		}
	}
	return nil
}
