// Package clock abstracts wall-clock time and deferred callbacks so that the
// timing-gated components can be driven deterministically in tests.
package clock

import "time"

// Timer is a scheduled callback that can be revoked.
type Timer interface {
	// Stop prevents the callback from firing. Returns false if it already
	// fired or was stopped.
	Stop() bool
}

// Clock is the only source of time for phase timers and debouncers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real returns a Clock backed by the time package. Callbacks run on their
// own goroutine, exactly like time.AfterFunc.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
