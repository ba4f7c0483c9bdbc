package scenario

import (
	"context"
	"time"

	"github.com/abelbrown/opstream/internal/event"
)

// Playback streams one Script in real time.
type Playback struct {
	script Script
	speed  float64
	origin string
}

// Label returns the operation label.
func (p *Playback) Label() string { return p.script.Label }

// Origin returns the scenario the script came from.
func (p *Playback) Origin() string { return p.origin }

// Stream emits each record at its scripted offset from the call, stamping
// At with the delivery time.
func (p *Playback) Stream(ctx context.Context, emit func(event.Record) error) error {
	start := time.Now()
	for _, st := range p.script.Records {
		if err := p.wait(ctx, start, st.At); err != nil {
			return err
		}
		r, err := st.Record()
		if err != nil {
			return err
		}
		r.At = time.Now()
		if err := emit(r); err != nil {
			return err
		}
	}
	return nil
}

func (p *Playback) wait(ctx context.Context, start time.Time, at time.Duration) error {
	if p.speed <= 0 {
		return ctx.Err()
	}
	due := start.Add(time.Duration(float64(at) / p.speed))
	d := time.Until(due)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
