package filter

import (
	"slices"
	"sync"
)

// Compositor owns the filter state for one list and notifies listeners on
// every observable change.
type Compositor[T any] struct {
	mu        sync.Mutex
	name      func(T) string
	preds     []Predicate[T]
	state     State
	listeners []func(State)
}

// New creates a Compositor. name returns the display name the query is
// matched against.
func New[T any](name func(T) string, preds ...Predicate[T]) *Compositor[T] {
	return &Compositor[T]{name: name, preds: preds}
}

// OnChange registers fn to receive a copy of the state after each change.
func (c *Compositor[T]) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// State returns a copy of the current filter state.
func (c *Compositor[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// SetQuery replaces the free-text query.
func (c *Compositor[T]) SetQuery(q string) {
	c.update(func(s *State) bool {
		if s.Query == q {
			return false
		}
		s.Query = q
		return true
	})
}

// SetValues replaces the values selected for key. No values deselects key.
func (c *Compositor[T]) SetValues(key Key, values ...string) {
	c.update(func(s *State) bool {
		if slices.Equal(s.Values[key], values) {
			return false
		}
		if len(values) == 0 {
			delete(s.Values, key)
			return true
		}
		if s.Values == nil {
			s.Values = make(map[Key][]string)
		}
		s.Values[key] = slices.Clone(values)
		return true
	})
}

// Toggle selects value for key, or deselects it if already selected.
func (c *Compositor[T]) Toggle(key Key, value string) {
	c.update(func(s *State) bool {
		vs := s.Values[key]
		if i := slices.Index(vs, value); i >= 0 {
			vs = slices.Delete(slices.Clone(vs), i, i+1)
		} else {
			vs = append(slices.Clone(vs), value)
		}
		if len(vs) == 0 {
			delete(s.Values, key)
			return true
		}
		if s.Values == nil {
			s.Values = make(map[Key][]string)
		}
		s.Values[key] = vs
		return true
	})
}

// Clear resets the query and every predicate in one step. Listeners see a
// single notification with the fully cleared state.
func (c *Compositor[T]) Clear() {
	c.update(func(s *State) bool {
		if !s.Active() {
			return false
		}
		*s = State{}
		return true
	})
}

func (c *Compositor[T]) update(fn func(*State) bool) {
	c.mu.Lock()
	if !fn(&c.state) {
		c.mu.Unlock()
		return
	}
	snap := c.state.clone()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// IsActive reports whether the current state constrains the list.
func (c *Compositor[T]) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Active()
}

// Matches tests item against the current state.
func (c *Compositor[T]) Matches(item T) bool {
	return c.MatchState(c.State(), item)
}

// MatchState tests item against an arbitrary state. Predicates with no
// selected values are skipped.
func (c *Compositor[T]) MatchState(s State, item T) bool {
	if !matchQuery(c.name(item), s.Query) {
		return false
	}
	for _, p := range c.preds {
		vs := s.Values[p.Key]
		if len(vs) == 0 {
			continue
		}
		if !p.Test(item, vs) {
			return false
		}
	}
	return true
}

// Apply returns the items matching the current state, in order.
func (c *Compositor[T]) Apply(items []T) []T {
	s := c.State()
	result := make([]T, 0, len(items))
	for _, item := range items {
		if c.MatchState(s, item) {
			result = append(result, item)
		}
	}
	return result
}
