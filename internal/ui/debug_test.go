package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/opstream/internal/clock"
	"github.com/abelbrown/opstream/internal/event"
	"github.com/abelbrown/opstream/internal/operation"
	"github.com/abelbrown/opstream/internal/otel"
	"github.com/abelbrown/opstream/internal/phase"
	"github.com/abelbrown/opstream/internal/reveal"
)

// lifecycleRing runs one operation to Settled and closes a second one
// mid-flight, returning the ring its events landed in.
func lifecycleRing(t *testing.T) *otel.RingBuffer {
	t.Helper()
	c := clock.NewFake(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC))
	l := otel.NewNullLogger()
	ring := otel.NewRingBuffer(64)
	l.SetRingBuffer(ring)

	reg := operation.NewRegistry(operation.Settings{
		Display: phase.DefaultConfig(),
		Reveal:  reveal.Default(),
		Clock:   c,
		Logger:  l,
	})

	inst, err := reg.BeginID("op-12345678-report", "search report")
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range []event.Record{event.Start(docs()[:2]...), event.Items(docs()[2:]...)} {
		if err := inst.Observe(r); err != nil {
			t.Fatal(err)
		}
	}
	c.Advance(50 * time.Millisecond)
	if err := inst.Observe(event.End()); err != nil {
		t.Fatal(err)
	}
	c.Advance(2 * time.Second)

	if _, err := reg.BeginID("op-abandoned", "search roadmap"); err != nil {
		t.Fatal(err)
	}
	if err := reg.Close("op-abandoned"); err != nil {
		t.Fatal(err)
	}

	reg.CloseAll()
	l.Close()
	return ring
}

func TestDebugOverlayNilRing(t *testing.T) {
	if got := debugOverlay(nil, 120, 40); got != "" {
		t.Errorf("debugOverlay(nil) = %q, want empty", got)
	}
}

func TestDebugOverlayCountsLifecycle(t *testing.T) {
	ring := lifecycleRing(t)
	result := debugOverlay(ring, 120, 40)

	for _, want := range []string{
		"2 begun, 1 started, 1 ended, 2 closed",
		"3 transitions, 1 settled, 2 cancelled",
		"0 commits, 0 filter changes, 0 clears",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("overlay missing %q:\n%s", want, result)
		}
	}
}

func TestDebugOverlayShowsTransitions(t *testing.T) {
	result := debugOverlay(lifecycleRing(t), 120, 40)

	for _, want := range []string{
		"idle→in_progress",
		"in_progress→just_finished",
		"just_finished→settled",
		"op:op-12345",
		"search report",
		"phase.cancel",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("overlay missing %q:\n%s", want, result)
		}
	}
	if strings.Contains(result, "op:op-123456") {
		t.Error("operation IDs should be cut to 8 runes")
	}
}

func TestDebugOverlayFitsHeight(t *testing.T) {
	result := debugOverlay(lifecycleRing(t), 120, 12)

	if n := strings.Count(result, "\n") + 1; n > 12 {
		t.Errorf("overlay has %d lines, want at most 12:\n%s", n, result)
	}
	if !strings.Contains(result, "Recent Events") {
		t.Errorf("header should survive truncation:\n%s", result)
	}
	if strings.Contains(result, "→") {
		t.Errorf("event rows should be cut first:\n%s", result)
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		dur  time.Duration
		want string
	}{
		{-5 * time.Second, "0ms"},
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "2m"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.dur); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.dur, got, tt.want)
		}
	}
}
