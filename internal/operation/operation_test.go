package operation

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/abelbrown/opstream/internal/clock"
	"github.com/abelbrown/opstream/internal/event"
	"github.com/abelbrown/opstream/internal/otel"
	"github.com/abelbrown/opstream/internal/phase"
	"github.com/abelbrown/opstream/internal/reveal"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func items(n int) []event.Item {
	out := make([]event.Item, n)
	for i := range out {
		out[i] = event.Item{ID: fmt.Sprintf("doc-%d", i+1), Name: fmt.Sprintf("Document %d", i+1)}
	}
	return out
}

func newRegistry(c *clock.Fake) *Registry {
	return NewRegistry(Settings{
		Display: phase.DefaultConfig(),
		Reveal:  reveal.Default(),
		Clock:   c,
	})
}

// A fast operation: start with four documents at 0ms, end at 50ms. The user
// sees "in progress" for the full second, "done" for the next, then the
// consumer hears about completion exactly once.
func TestEndToEndScenario(t *testing.T) {
	c := clock.NewFake(time.Time{})
	r := newRegistry(c)

	var settled []string
	var phases []phase.Phase
	r.OnSettled(func(id string) { settled = append(settled, id) })
	r.OnPhase(func(_ string, p phase.Phase) { phases = append(phases, p) })

	inst := r.Begin("search drive")
	if got := inst.View().Phase; got != phase.Idle {
		t.Fatalf("new instance phase = %v, want idle", got)
	}

	if err := inst.Observe(event.Start(items(4)...)); err != nil {
		t.Fatal(err)
	}
	v := inst.View()
	if v.Phase != phase.InProgress || len(v.Items) != 4 || v.Visible != 3 || v.More() != 1 {
		t.Fatalf("after start: phase=%v items=%d visible=%d", v.Phase, len(v.Items), v.Visible)
	}

	c.Advance(50 * time.Millisecond)
	if err := inst.Observe(event.End()); err != nil {
		t.Fatal(err)
	}
	if inst.Phase() != phase.InProgress {
		t.Errorf("phase right after end = %v, want in_progress", inst.Phase())
	}

	c.Advance(950 * time.Millisecond) // t=1000ms
	if inst.Phase() != phase.JustFinished {
		t.Errorf("phase at 1000ms = %v, want just_finished", inst.Phase())
	}

	c.Advance(time.Second) // t=2000ms
	if inst.Phase() != phase.Settled {
		t.Errorf("phase at 2000ms = %v, want settled", inst.Phase())
	}
	if diff := cmp.Diff([]string{inst.ID()}, settled); diff != "" {
		t.Errorf("settled callbacks (-want +got):\n%s", diff)
	}
	want := []phase.Phase{phase.InProgress, phase.JustFinished, phase.Settled}
	if diff := cmp.Diff(want, phases); diff != "" {
		t.Errorf("phase changes (-want +got):\n%s", diff)
	}

	if got := inst.Expand(); got != 4 {
		t.Errorf("Expand() = %d, want 4", got)
	}
	if got := len(inst.View().Shown()); got != 4 {
		t.Errorf("shown after expand = %d, want 4", got)
	}

	r.CloseAll()
}

func TestIncrementalItemsGrowWithoutResettingReveal(t *testing.T) {
	c := clock.NewFake(time.Time{})
	r := newRegistry(c)
	inst := r.Begin("crawl")

	all := items(12)
	_ = inst.Observe(event.Start(all[:2]...))
	_ = inst.Observe(event.Items(all[2:6]...))
	if got := inst.Expand(); got != 6 {
		t.Fatalf("Expand() = %d, want 6 (saturated at total)", got)
	}

	_ = inst.Observe(event.Items(all[4:12]...)) // overlaps, de-duplicated
	v := inst.View()
	if len(v.Items) != 12 {
		t.Errorf("items = %d, want 12", len(v.Items))
	}
	if v.Visible != 6 {
		t.Errorf("visible = %d, growth must not reset reveal", v.Visible)
	}
	if v.Records != 3 {
		t.Errorf("records = %d, want 3", v.Records)
	}

	inst.ResetReveal()
	if got := inst.View().Visible; got != 3 {
		t.Errorf("visible after reset = %d, want 3", got)
	}
	r.CloseAll()
}

func TestInstancesAreIndependent(t *testing.T) {
	c := clock.NewFake(time.Time{})
	r := newRegistry(c)

	var settled []string
	r.OnSettled(func(id string) { settled = append(settled, id) })

	a := r.Begin("a")
	b := r.Begin("b")
	_ = a.Observe(event.Start())
	_ = a.Observe(event.End())
	_ = b.Observe(event.Start(items(1)...))

	c.Advance(5 * time.Second)

	if a.Phase() != phase.Settled || b.Phase() != phase.InProgress {
		t.Errorf("a=%v b=%v", a.Phase(), b.Phase())
	}
	if diff := cmp.Diff([]string{a.ID()}, settled); diff != "" {
		t.Errorf("settled (-want +got):\n%s", diff)
	}

	views := r.Views()
	if len(views) != 2 || views[0].Label != "a" || views[1].Label != "b" {
		t.Errorf("Views() not in begin order: %+v", views)
	}
	r.CloseAll()
}

func TestSupersedeSilencesOldInstance(t *testing.T) {
	c := clock.NewFake(time.Time{})
	r := newRegistry(c)

	var settled []string
	r.OnSettled(func(id string) { settled = append(settled, id) })

	old := r.Begin("first try")
	_ = old.Observe(event.Start())
	_ = old.Observe(event.End())

	next := r.Supersede(old.ID(), "second try")
	c.Advance(5 * time.Second)

	if len(settled) != 0 {
		t.Errorf("superseded instance completed: %v", settled)
	}
	if old.Phase() != phase.InProgress {
		t.Errorf("old phase = %v, want frozen at in_progress", old.Phase())
	}
	if !errors.Is(old.Observe(event.End()), ErrClosed) {
		t.Error("Observe on superseded instance should fail with ErrClosed")
	}
	if _, ok := r.Get(old.ID()); ok {
		t.Error("superseded instance still registered")
	}
	if _, ok := r.Get(next.ID()); !ok || r.Len() != 1 {
		t.Error("replacement not registered")
	}
	r.CloseAll()
}

func TestBeginIDAndClose(t *testing.T) {
	r := newRegistry(clock.NewFake(time.Time{}))

	if _, err := r.BeginID("op-1", "journal"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.BeginID("op-1", "again"); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate BeginID err = %v, want ErrExists", err)
	}
	if err := r.Close("op-1"); err != nil {
		t.Fatal(err)
	}
	if err := r.Close("op-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Close err = %v, want ErrNotFound", err)
	}
}

func TestStrictOrderRejectsEarlyEnd(t *testing.T) {
	r := NewRegistry(Settings{Display: phase.DefaultConfig(), Clock: clock.NewFake(time.Time{}), StrictOrder: true})
	inst := r.Begin("strict")

	err := inst.Observe(event.End())
	var order *event.InvalidOrderError
	if !errors.As(err, &order) {
		t.Fatalf("err = %v, want *event.InvalidOrderError", err)
	}
	if inst.View().Records != 0 {
		t.Error("rejected record was appended")
	}
	r.CloseAll()
}

func TestLenientOrderIgnoresEarlyEnd(t *testing.T) {
	c := clock.NewFake(time.Time{})
	r := newRegistry(c)
	inst := r.Begin("lenient")

	_ = inst.Observe(event.End())
	c.Advance(5 * time.Second)
	if inst.Phase() != phase.Idle {
		t.Errorf("phase = %v, an end before start should be ignored", inst.Phase())
	}

	_ = inst.Observe(event.Start())
	if v := inst.View(); !v.Started || v.Ended {
		t.Errorf("started=%v ended=%v", v.Started, v.Ended)
	}
	r.CloseAll()
}

func TestEmitsLifecycleEvents(t *testing.T) {
	c := clock.NewFake(time.Time{})
	l := otel.NewNullLogger()
	ring := otel.NewRingBuffer(64)
	l.SetRingBuffer(ring)

	r := NewRegistry(Settings{Display: phase.Config{}, Clock: c, Logger: l})
	inst := r.Begin("traced")
	_ = inst.Observe(event.Start(items(2)...))
	_ = inst.Observe(event.Items(items(3)...))
	_ = inst.Observe(event.End())
	r.CloseAll()
	l.Close() // flush to the ring

	stats := ring.Stats()
	for kind, want := range map[otel.EventKind]int{
		otel.KindOpBegin:  1,
		otel.KindOpStart:  1,
		otel.KindOpRecord: 1,
		otel.KindOpEnd:    1,
		otel.KindOpClose:  1,
	} {
		if stats[kind] != want {
			t.Errorf("%s events = %d, want %d", kind, stats[kind], want)
		}
	}
	if got := len(ring.ForOp(inst.ID())); got < 5 {
		t.Errorf("ForOp returned %d events", got)
	}
}
