// Package reveal decides how many items of a growing result list are shown.
package reveal

const (
	// DefaultInitial is how many items are visible before any expansion.
	DefaultInitial = 3
	// DefaultStep is how many more items each expansion reveals.
	DefaultStep = 5
)

// Controller holds the fixed initial count and step. The zero value is not
// useful; use New or Default.
type Controller struct {
	initial int
	step    int
}

// New returns a Controller. Non-positive arguments fall back to the
// defaults.
func New(initial, step int) Controller {
	if initial <= 0 {
		initial = DefaultInitial
	}
	if step <= 0 {
		step = DefaultStep
	}
	return Controller{initial: initial, step: step}
}

// Default returns New(DefaultInitial, DefaultStep).
func Default() Controller {
	return New(DefaultInitial, DefaultStep)
}

// Initial returns the visible count of a fresh instance.
func (c Controller) Initial() int { return c.initial }

// Step returns the expansion step.
func (c Controller) Step() int { return c.step }

// Expand returns min(current+step, total), but never less than current:
// a list that shrank mid-flight is clamped at render time, not here.
func (c Controller) Expand(current, total int) int {
	next := min(current+c.step, total)
	return max(current, next)
}

// State is the reveal state of one list.
type State struct {
	ctrl         Controller
	VisibleCount int
}

// NewState returns a State at the controller's initial count.
func (c Controller) NewState() State {
	return State{ctrl: c, VisibleCount: c.initial}
}

// Expand reveals the next step of a list currently holding total items.
func (s *State) Expand(total int) int {
	s.VisibleCount = s.ctrl.Expand(s.VisibleCount, total)
	return s.VisibleCount
}

// Shown is the number of items to render: the visible count clamped to what
// exists. Growth of the list never changes VisibleCount.
func (s State) Shown(total int) int {
	return max(0, min(s.VisibleCount, total))
}

// More reports how many items remain hidden.
func (s State) More(total int) int {
	return max(0, total-s.Shown(total))
}

// Saturated reports whether every available item is visible.
func (s State) Saturated(total int) bool {
	return s.VisibleCount >= total
}

// Reset returns to the initial count. Used when the list's meaning changes
// (a new committed search), never when it merely grows.
func (s *State) Reset() {
	s.VisibleCount = s.ctrl.initial
}
