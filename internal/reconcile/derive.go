// Package reconcile derives the logical state of an operation from its
// event log. Everything here is a pure function of the records: no clocks,
// no side effects, safe to re-run on every append.
package reconcile

import "github.com/abelbrown/opstream/internal/event"

// LogicalState is what has happened to an operation, independent of how
// long it has been visible.
//
// Invariants: Ended implies Started; across derivations of a growing log
// Items only grows and the booleans only go from false to true.
type LogicalState struct {
	Items   []event.Item
	Started bool
	Ended   bool
}

// AtLeast reports whether s is pointwise at least as advanced as prev.
func (s LogicalState) AtLeast(prev LogicalState) bool {
	if prev.Started && !s.Started {
		return false
	}
	if prev.Ended && !s.Ended {
		return false
	}
	return len(s.Items) >= len(prev.Items)
}

// Derive scans the snapshot once.
//
// The first operation.start wins: its items become the initial list as
// delivered and later starts are ignored. An operation.end only counts once
// a start has been seen, so out-of-order delivery reads as "not yet
// started" instead of failing. operation.items records after the start
// append items in arrival order, skipping IDs already in the list.
func Derive(s event.Snapshot) LogicalState {
	var c Cursor
	return c.Advance(s)
}

// Cursor derives incrementally: each Advance only visits records it has not
// seen. Observationally identical to Derive for snapshots of the same log
// passed in non-decreasing length.
type Cursor struct {
	pos   int
	state LogicalState
	seen  map[string]struct{}
}

// Advance consumes records past the cursor and returns the current state.
// A snapshot shorter than the cursor position (a different log) restarts the
// derivation from scratch.
func (c *Cursor) Advance(s event.Snapshot) LogicalState {
	if s.Len() < c.pos {
		*c = Cursor{}
	}
	for ; c.pos < s.Len(); c.pos++ {
		c.apply(s.At(c.pos))
	}
	return c.current()
}

// Position returns how many records the cursor has consumed.
func (c *Cursor) Position() int { return c.pos }

func (c *Cursor) apply(r event.Record) {
	switch r.Kind {
	case event.KindOperationStart:
		if c.state.Started {
			return
		}
		c.state.Started = true
		c.seed(r.Items)
	case event.KindOperationItems:
		if !c.state.Started {
			return
		}
		c.merge(r.Items)
	case event.KindOperationEnd:
		if c.state.Started {
			c.state.Ended = true
		}
	}
}

// seed takes the start's items exactly as delivered and remembers their
// IDs so later deliveries can be de-duplicated against them.
func (c *Cursor) seed(items []event.Item) {
	c.seen = make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ID != "" {
			c.seen[item.ID] = struct{}{}
		}
	}
	c.state.Items = append(c.state.Items, items...)
}

// merge appends items not seen before, first occurrence wins.
func (c *Cursor) merge(items []event.Item) {
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	for _, item := range items {
		if item.ID != "" {
			if _, dup := c.seen[item.ID]; dup {
				continue
			}
			c.seen[item.ID] = struct{}{}
		}
		c.state.Items = append(c.state.Items, item)
	}
}

// current returns a copy so callers can never reach the cursor's storage.
func (c *Cursor) current() LogicalState {
	out := c.state
	if c.state.Items != nil {
		out.Items = make([]event.Item, len(c.state.Items))
		copy(out.Items, c.state.Items)
	}
	return out
}
