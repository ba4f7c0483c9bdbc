package otel_test

import (
	"slices"
	"testing"
	"time"

	"github.com/abelbrown/opstream/internal/clock"
	"github.com/abelbrown/opstream/internal/otel"
	"github.com/abelbrown/opstream/internal/phase"
	"github.com/abelbrown/opstream/internal/reconcile"
)

// The ring fed by real display timers: one operation runs to Settled, a
// second is cancelled while in progress.
func TestRingRecordsTimerLifecycle(t *testing.T) {
	c := clock.NewFake(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC))
	l := otel.NewNullLogger()
	ring := otel.NewRingBuffer(64)
	l.SetRingBuffer(ring)

	cfg := phase.Config{MinProgress: time.Second, MinSettle: time.Second}
	done := phase.New(cfg, phase.WithClock(c), phase.WithLogger(l, "op-done"))
	dropped := phase.New(cfg, phase.WithClock(c), phase.WithLogger(l, "op-dropped"))

	done.Observe(reconcile.LogicalState{Started: true})
	dropped.Observe(reconcile.LogicalState{Started: true})
	c.Advance(50 * time.Millisecond)
	done.Observe(reconcile.LogicalState{Started: true, Ended: true})
	dropped.Cancel()
	c.Advance(2 * time.Second)
	l.Close()

	type step struct {
		kind     otel.EventKind
		from, to string
		dwell    time.Duration
	}
	var got []step
	for _, e := range ring.ForOp("op-done") {
		got = append(got, step{e.Kind, e.From, e.To, e.Dur})
	}
	want := []step{
		{otel.KindPhaseTransition, "idle", "in_progress", 0},
		{otel.KindPhaseTransition, "in_progress", "just_finished", time.Second},
		{otel.KindPhaseTransition, "just_finished", "settled", time.Second},
		{otel.KindPhaseSettle, "", "", 0},
	}
	if !slices.Equal(got, want) {
		t.Errorf("op-done events:\n got %+v\nwant %+v", got, want)
	}

	var kinds []otel.EventKind
	for _, e := range ring.ForOp("op-dropped") {
		kinds = append(kinds, e.Kind)
	}
	if !slices.Equal(kinds, []otel.EventKind{otel.KindPhaseTransition, otel.KindPhaseCancel}) {
		t.Errorf("op-dropped kinds = %v", kinds)
	}

	stats := ring.Stats()
	if stats[otel.KindPhaseTransition] != 4 || stats[otel.KindPhaseSettle] != 1 || stats[otel.KindPhaseCancel] != 1 {
		t.Errorf("stats = %v", stats)
	}
}
