package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/abelbrown/opstream/internal/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type commits struct {
	values []string
	log    []string // interleaving of reset and commit calls
}

func newSearch(c clock.Clock, got *commits) *Debouncer[string] {
	return New(300*time.Millisecond,
		func(v string) {
			got.values = append(got.values, v)
			got.log = append(got.log, "commit:"+v)
		},
		WithClock[string](c),
		WithReset[string](func() { got.log = append(got.log, "reset") }),
	)
}

func TestCoalescesRapidInput(t *testing.T) {
	c := clock.NewFake(time.Time{})
	got := &commits{}
	d := newSearch(c, got)

	for _, v := range []string{"a", "ab", "abc"} {
		d.Input(v)
		if d.Local() != v {
			t.Errorf("Local() = %q right after Input(%q)", d.Local(), v)
		}
		c.Advance(100 * time.Millisecond)
	}
	if len(got.values) != 0 {
		t.Fatalf("committed before quiet period: %v", got.values)
	}

	c.Advance(300 * time.Millisecond)
	if diff := cmp.Diff([]string{"abc"}, got.values); diff != "" {
		t.Errorf("commits (-want +got):\n%s", diff)
	}
	if d.Committed() != "abc" || d.Pending() {
		t.Errorf("Committed=%q Pending=%v", d.Committed(), d.Pending())
	}
}

func TestResetRunsBeforeCommit(t *testing.T) {
	c := clock.NewFake(time.Time{})
	got := &commits{}
	d := newSearch(c, got)

	d.Input("x")
	c.Advance(time.Second)

	if diff := cmp.Diff([]string{"reset", "commit:x"}, got.log); diff != "" {
		t.Errorf("call order (-want +got):\n%s", diff)
	}
}

func TestUnchangedValueDoesNotCommit(t *testing.T) {
	c := clock.NewFake(time.Time{})
	got := &commits{}
	d := newSearch(c, got)

	d.Input("q")
	c.Advance(time.Second)
	d.Input("qq")
	d.Input("q")
	c.Advance(time.Second)

	if diff := cmp.Diff([]string{"q"}, got.values); diff != "" {
		t.Errorf("commits (-want +got):\n%s", diff)
	}
}

func TestSyncDoesNotFeedBack(t *testing.T) {
	c := clock.NewFake(time.Time{})
	got := &commits{}
	d := newSearch(c, got)

	d.Input("abc")
	c.Advance(time.Second)
	d.Input("abcd") // pending when the outside clear happens

	d.Sync("")
	if d.Local() != "" || d.Committed() != "" {
		t.Errorf("after Sync local=%q committed=%q", d.Local(), d.Committed())
	}
	if d.Pending() || c.Pending() != 0 {
		t.Error("Sync must not leave or start a timer")
	}

	c.Advance(time.Second)
	if diff := cmp.Diff([]string{"abc"}, got.values); diff != "" {
		t.Errorf("Sync triggered a commit (-want +got):\n%s", diff)
	}
}

func TestFlush(t *testing.T) {
	c := clock.NewFake(time.Time{})
	got := &commits{}
	d := newSearch(c, got)

	d.Flush() // nothing pending
	d.Input("now")
	d.Flush()
	if diff := cmp.Diff([]string{"now"}, got.values); diff != "" {
		t.Errorf("Flush commits (-want +got):\n%s", diff)
	}
	c.Advance(time.Second)
	if len(got.values) != 1 {
		t.Errorf("timer fired after Flush: %v", got.values)
	}
}

func TestCancelKeepsEcho(t *testing.T) {
	c := clock.NewFake(time.Time{})
	got := &commits{}
	d := newSearch(c, got)

	d.Input("typed")
	d.Cancel()
	c.Advance(time.Second)

	if len(got.values) != 0 {
		t.Errorf("cancelled debouncer committed %v", got.values)
	}
	if d.Local() != "typed" {
		t.Errorf("Local() = %q, want typed", d.Local())
	}
}

func TestWithInitial(t *testing.T) {
	d := New[int](time.Millisecond, nil, WithInitial(7), WithClock[int](clock.NewFake(time.Time{})))
	if d.Local() != 7 || d.Committed() != 7 {
		t.Errorf("initial local=%d committed=%d", d.Local(), d.Committed())
	}
}

func TestRealClockRapidCalls(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var last int
	done := make(chan struct{}, 1)

	d := New(50*time.Millisecond, func(v int) {
		mu.Lock()
		last = v
		mu.Unlock()
		calls.Add(1)
		done <- struct{}{}
	})

	for i := 1; i <= 10; i++ {
		d.Input(i)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("no commit")
	}
	time.Sleep(100 * time.Millisecond)

	if calls.Load() != 1 {
		t.Errorf("commits = %d, want 1", calls.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if last != 10 {
		t.Errorf("last = %d, want 10", last)
	}
}
