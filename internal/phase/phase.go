// Package phase turns logical operation state into a time-gated visual
// phase. It is the only part of the reconciliation core that reads the clock
// or schedules deferred work.
package phase

import "time"

// Phase is the visual state of one operation instance. Phases only move
// forward: Idle < InProgress < JustFinished < Settled.
type Phase int

const (
	Idle Phase = iota
	InProgress
	JustFinished
	Settled
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case InProgress:
		return "in_progress"
	case JustFinished:
		return "just_finished"
	case Settled:
		return "settled"
	default:
		return "unknown"
	}
}

// Terminal reports whether p is the last phase.
func (p Phase) Terminal() bool { return p == Settled }

// Config holds the anti-flicker minimums. Zero values collapse the delays to
// immediate transitions without changing the phase order.
type Config struct {
	// MinProgress is how long InProgress stays visible before JustFinished.
	MinProgress time.Duration
	// MinSettle is how long JustFinished stays visible before Settled.
	MinSettle time.Duration
}

// DefaultConfig returns the minimums used when animation is enabled.
func DefaultConfig() Config {
	return Config{
		MinProgress: 1000 * time.Millisecond,
		MinSettle:   1000 * time.Millisecond,
	}
}

// VisualState is what the view layer reads.
type VisualState struct {
	Phase Phase
	Since time.Time // when Phase became visible; zero while Idle
}
