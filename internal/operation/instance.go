// Package operation binds the event log, deriver, display timer and reveal
// state of one remote operation into an Instance, and tracks many
// independent instances in a Registry.
package operation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abelbrown/opstream/internal/clock"
	"github.com/abelbrown/opstream/internal/event"
	"github.com/abelbrown/opstream/internal/otel"
	"github.com/abelbrown/opstream/internal/phase"
	"github.com/abelbrown/opstream/internal/reconcile"
	"github.com/abelbrown/opstream/internal/reveal"
)

// ErrClosed is returned when recording into a closed instance.
var ErrClosed = errors.New("operation closed")

// Settings are shared by every instance a Registry creates.
type Settings struct {
	Display     phase.Config
	Reveal      reveal.Controller
	Clock       clock.Clock
	Logger      *otel.Logger
	StrictOrder bool
}

// DefaultSettings uses the default display durations and reveal steps on
// the real clock.
func DefaultSettings() Settings {
	return Settings{
		Display: phase.DefaultConfig(),
		Reveal:  reveal.Default(),
		Clock:   clock.Real(),
	}
}

// Instance is one remote operation as the view sees it.
type Instance struct {
	mu      sync.Mutex
	id      string
	label   string
	began   time.Time
	log     *event.Log
	cursor  reconcile.Cursor
	logical reconcile.LogicalState
	reveal  reveal.State
	timer   *phase.Timer
	obs     *otel.Logger
	closed  bool
}

// View is an immutable picture of an instance for rendering.
type View struct {
	ID      string
	Label   string
	Began   time.Time
	Phase   phase.Phase
	Since   time.Time
	Items   []event.Item
	Visible int // already clamped to len(Items)
	Records int
	Started bool
	Ended   bool
}

// Shown returns the items currently revealed.
func (v View) Shown() []event.Item {
	return v.Items[:v.Visible]
}

// More returns how many items are still hidden.
func (v View) More() int {
	return len(v.Items) - v.Visible
}

func newInstance(id, label string, s Settings, onChange func(phase.Phase), onComplete func()) *Instance {
	var logOpts []event.LogOption
	if s.StrictOrder {
		logOpts = append(logOpts, event.WithStrictOrder())
	}
	inst := &Instance{
		id:     id,
		label:  label,
		began:  s.Clock.Now(),
		log:    event.NewLog(logOpts...),
		reveal: s.Reveal.NewState(),
		obs:    s.Logger,
	}
	inst.timer = phase.New(s.Display,
		phase.WithClock(s.Clock),
		phase.WithLogger(s.Logger, id),
		phase.OnChange(onChange),
		phase.OnComplete(onComplete),
	)
	return inst
}

// ID returns the instance identifier.
func (i *Instance) ID() string { return i.id }

// Label returns the human-readable name given at Begin.
func (i *Instance) Label() string { return i.label }

// Observe appends r to the log, re-derives the logical state and lets the
// display timer react. The timer is driven outside the instance lock so its
// callbacks may read the instance.
func (i *Instance) Observe(r event.Record) error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return ErrClosed
	}
	if err := i.log.Append(r); err != nil {
		i.mu.Unlock()
		return fmt.Errorf("observe %s: %w", i.id, err)
	}
	prev := i.logical
	i.logical = i.cursor.Advance(i.log.Snapshot())
	state := i.logical
	i.mu.Unlock()

	i.emitProgress(prev, state)
	i.timer.Observe(state)
	return nil
}

func (i *Instance) emitProgress(prev, cur reconcile.LogicalState) {
	if i.obs == nil {
		return
	}
	if !prev.Started && cur.Started {
		i.obs.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindOpStart, Comp: "operation", OpID: i.id, Count: len(cur.Items)})
	}
	if n := len(cur.Items) - len(prev.Items); n > 0 && prev.Started {
		i.obs.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindOpRecord, Comp: "operation", OpID: i.id, Count: n})
	}
	if !prev.Ended && cur.Ended {
		i.obs.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindOpEnd, Comp: "operation", OpID: i.id, Count: len(cur.Items)})
	}
}

// Expand reveals the next step of items and returns the new visible count.
func (i *Instance) Expand() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.reveal.Expand(len(i.logical.Items))
}

// ResetReveal returns the visible count to its initial value.
func (i *Instance) ResetReveal() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reveal.Reset()
}

// Phase returns the current visual phase.
func (i *Instance) Phase() phase.Phase {
	return i.timer.Phase()
}

// Records returns a snapshot of the raw log.
func (i *Instance) Records() event.Snapshot {
	return i.log.Snapshot()
}

// View returns the current render state.
func (i *Instance) View() View {
	vs := i.timer.State()

	i.mu.Lock()
	defer i.mu.Unlock()
	items := make([]event.Item, len(i.logical.Items))
	copy(items, i.logical.Items)
	return View{
		ID:      i.id,
		Label:   i.label,
		Began:   i.began,
		Phase:   vs.Phase,
		Since:   vs.Since,
		Items:   items,
		Visible: i.reveal.Shown(len(items)),
		Records: i.log.Len(),
		Started: i.logical.Started,
		Ended:   i.logical.Ended,
	}
}

// Close tears the instance down. Pending timers are revoked and no callback
// fires afterwards. Closing twice is a no-op.
func (i *Instance) Close() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.closed = true
	i.mu.Unlock()

	i.timer.Cancel()
	i.obs.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindOpClose, Comp: "operation", OpID: i.id})
}

// Closed reports whether Close was called.
func (i *Instance) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}
