package phase

import (
	"sync"
	"time"

	"github.com/abelbrown/opstream/internal/clock"
	"github.com/abelbrown/opstream/internal/otel"
	"github.com/abelbrown/opstream/internal/reconcile"
)

// Timer is the display state machine of one operation instance.
//
// It owns at most one pending advance at a time; scheduling replaces the
// previous one. Every scheduled callback carries the generation it was
// created under, so a callback that fires after Cancel, or after being
// replaced, does nothing. Callbacks (OnChange, OnComplete) run outside the
// lock, in transition order.
type Timer struct {
	mu    sync.Mutex
	cfg   Config
	clock clock.Clock
	log   *otel.Logger
	opID  string

	phase     Phase
	since     time.Time
	started   time.Time
	endSeen   bool
	completed bool
	cancelled bool

	pending clock.Timer
	gen     uint64

	onChange   func(Phase)
	onComplete func()
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock sets the time source. Defaults to clock.Real().
func WithClock(c clock.Clock) Option {
	return func(t *Timer) { t.clock = c }
}

// OnChange registers a callback invoked after every visible transition.
func OnChange(fn func(Phase)) Option {
	return func(t *Timer) { t.onChange = fn }
}

// OnComplete registers the completion callback, invoked exactly once when
// the timer reaches Settled.
func OnComplete(fn func()) Option {
	return func(t *Timer) { t.onComplete = fn }
}

// WithLogger emits phase events tagged with opID.
func WithLogger(l *otel.Logger, opID string) Option {
	return func(t *Timer) {
		t.log = l
		t.opID = opID
	}
}

// New creates a Timer in Idle.
func New(cfg Config, opts ...Option) *Timer {
	if cfg.MinProgress < 0 {
		cfg.MinProgress = 0
	}
	if cfg.MinSettle < 0 {
		cfg.MinSettle = 0
	}
	t := &Timer{cfg: cfg}
	for _, opt := range opts {
		opt(t)
	}
	if t.clock == nil {
		t.clock = clock.Real()
	}
	return t
}

// notice is a deferred callback collected under the lock.
type notice struct {
	phase    Phase
	complete bool
}

// Observe consumes the latest derived state. Safe to call on every append,
// with the same state repeatedly, and after Cancel.
func (t *Timer) Observe(s reconcile.LogicalState) {
	t.mu.Lock()
	var out []notice
	if !t.cancelled {
		now := t.clock.Now()
		if s.Started && t.phase == Idle {
			t.started = now
			out = t.enter(out, InProgress, now)
		}
		if s.Ended && s.Started && !t.endSeen {
			t.endSeen = true
			elapsed := now.Sub(t.started)
			if elapsed >= t.cfg.MinProgress {
				out = t.finish(out, now)
			} else {
				t.schedule(t.cfg.MinProgress-elapsed, t.fireFinish)
			}
		}
	}
	t.mu.Unlock()
	t.dispatch(out)
}

// finish enters JustFinished and arranges the move to Settled.
// Caller holds t.mu.
func (t *Timer) finish(out []notice, now time.Time) []notice {
	out = t.enter(out, JustFinished, now)
	if t.cfg.MinSettle <= 0 {
		return t.settle(out, now)
	}
	t.schedule(t.cfg.MinSettle, t.fireSettle)
	return out
}

// settle enters Settled and fires completion once. Caller holds t.mu.
func (t *Timer) settle(out []notice, now time.Time) []notice {
	out = t.enter(out, Settled, now)
	if !t.completed {
		t.completed = true
		out = append(out, notice{complete: true})
		t.log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindPhaseSettle, Comp: "phase", OpID: t.opID})
	}
	return out
}

// enter moves forward to p. Backward or repeated moves are refused, which
// makes the forward-only invariant local to this method. Caller holds t.mu.
func (t *Timer) enter(out []notice, p Phase, now time.Time) []notice {
	if p <= t.phase {
		return out
	}
	from := t.phase
	var dwell time.Duration
	if !t.since.IsZero() {
		dwell = now.Sub(t.since)
	}
	t.phase = p
	t.since = now
	t.log.Transition(t.opID, from.String(), p.String(), dwell)
	return append(out, notice{phase: p})
}

// schedule replaces any pending advance with fn after d. Caller holds t.mu.
func (t *Timer) schedule(d time.Duration, fn func(gen uint64)) {
	t.stopPending()
	t.gen++
	gen := t.gen
	t.pending = t.clock.AfterFunc(d, func() { fn(gen) })
}

// stopPending revokes the outstanding advance. Caller holds t.mu.
func (t *Timer) stopPending() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *Timer) fireFinish(gen uint64) {
	t.mu.Lock()
	var out []notice
	if t.live(gen) {
		t.pending = nil
		out = t.finish(out, t.clock.Now())
	}
	t.mu.Unlock()
	t.dispatch(out)
}

func (t *Timer) fireSettle(gen uint64) {
	t.mu.Lock()
	var out []notice
	if t.live(gen) {
		t.pending = nil
		out = t.settle(out, t.clock.Now())
	}
	t.mu.Unlock()
	t.dispatch(out)
}

// live reports whether a callback created under gen may still act.
// Caller holds t.mu.
func (t *Timer) live(gen uint64) bool {
	return !t.cancelled && gen == t.gen
}

// dispatch delivers notices in order. Each one re-checks cancellation, so a
// callback that cancels the timer, or a Cancel racing a timer goroutine,
// suppresses everything still queued.
func (t *Timer) dispatch(out []notice) {
	for _, n := range out {
		if t.Cancelled() {
			return
		}
		if n.complete {
			if t.onComplete != nil {
				t.onComplete()
			}
			continue
		}
		if t.onChange != nil {
			t.onChange(n.phase)
		}
	}
}

// Cancel revokes pending transitions. After Cancel the timer never changes
// phase or invokes a callback again. Idempotent.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	t.gen++
	t.stopPending()
	t.log.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindPhaseCancel, Comp: "phase", OpID: t.opID, Msg: t.phase.String()})
}

// Phase returns the visible phase.
func (t *Timer) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// State returns the visible phase and when it was entered.
func (t *Timer) State() VisualState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return VisualState{Phase: t.phase, Since: t.since}
}

// Completed reports whether the completion callback has fired.
func (t *Timer) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// Pending reports whether an advance is scheduled.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// Cancelled reports whether Cancel has been called.
func (t *Timer) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}
