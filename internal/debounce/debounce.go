// Package debounce collapses rapid input into a single committed value.
package debounce

import (
	"sync"
	"time"

	"github.com/abelbrown/opstream/internal/clock"
)

// DefaultQuiet is the quiet period used for search boxes.
const DefaultQuiet = 300 * time.Millisecond

// Debouncer echoes input immediately and commits it once no new input has
// arrived for the quiet period. At most one commit is pending at a time.
type Debouncer[T comparable] struct {
	mu        sync.Mutex
	clock     clock.Clock
	quiet     time.Duration
	local     T
	committed T
	pending   clock.Timer
	gen       uint64

	onCommit func(T)
	reset    func()
}

// Option configures a Debouncer.
type Option[T comparable] func(*Debouncer[T])

// WithClock sets the time source. Defaults to clock.Real().
func WithClock[T comparable](c clock.Clock) Option[T] {
	return func(d *Debouncer[T]) { d.clock = c }
}

// WithReset registers an action run before every commit, such as resetting
// pagination, so consumers never see a new value against stale state.
func WithReset[T comparable](fn func()) Option[T] {
	return func(d *Debouncer[T]) { d.reset = fn }
}

// WithInitial seeds both the echo and the committed value.
func WithInitial[T comparable](v T) Option[T] {
	return func(d *Debouncer[T]) {
		d.local = v
		d.committed = v
	}
}

// New creates a Debouncer calling onCommit after quiet of inactivity.
func New[T comparable](quiet time.Duration, onCommit func(T), opts ...Option[T]) *Debouncer[T] {
	d := &Debouncer[T]{quiet: quiet, onCommit: onCommit}
	for _, opt := range opts {
		opt(d)
	}
	if d.clock == nil {
		d.clock = clock.Real()
	}
	return d
}

// Input records v as the echo value and restarts the quiet period.
func (d *Debouncer[T]) Input(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.local = v
	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = d.clock.AfterFunc(d.quiet, func() { d.fire(gen) })
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		// Replaced, synced or cancelled while the callback was in flight.
		d.mu.Unlock()
		return
	}
	d.pending = nil
	v, ok := d.take()
	d.mu.Unlock()

	if ok {
		d.commit(v)
	}
}

// take moves the echo value to committed. Caller holds d.mu.
func (d *Debouncer[T]) take() (T, bool) {
	if d.local == d.committed {
		return d.local, false
	}
	d.committed = d.local
	return d.local, true
}

func (d *Debouncer[T]) commit(v T) {
	if d.reset != nil {
		d.reset()
	}
	if d.onCommit != nil {
		d.onCommit(v)
	}
}

// Flush commits the pending value now, if any.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.pending == nil {
		d.mu.Unlock()
		return
	}
	d.pending.Stop()
	d.pending = nil
	d.gen++
	v, ok := d.take()
	d.mu.Unlock()

	if ok {
		d.commit(v)
	}
}

// Sync adopts a value changed by an outside actor (e.g. "clear filters").
// The echo and committed values both become v and any pending commit is
// dropped. No timer starts and no callback runs.
func (d *Debouncer[T]) Sync(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.local = v
	d.committed = v
}

// Cancel drops any pending commit. The echo value is kept.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

func (d *Debouncer[T]) cancelLocked() {
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	d.gen++
}

// Local returns the echo value.
func (d *Debouncer[T]) Local() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.local
}

// Committed returns the last committed value.
func (d *Debouncer[T]) Committed() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.committed
}

// Pending reports whether a commit is scheduled.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}
