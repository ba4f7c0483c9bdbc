package store

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/abelbrown/opstream/internal/event"
)

// Replay streams a journaled operation back as if it were live, paced by a
// token bucket. A non-positive rate replays as fast as the consumer allows.
type Replay struct {
	store   *Store
	op      Operation
	limiter *rate.Limiter
}

// NewReplay prepares a replay of operation id at perSecond records/second.
func (s *Store) NewReplay(id string, perSecond float64) (*Replay, error) {
	op, err := s.Operation(id)
	if err != nil {
		return nil, err
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Replay{
		store:   s,
		op:      op,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

// ID returns the journaled operation ID, so re-journaling is a no-op.
func (r *Replay) ID() string { return r.op.ID }

// Label returns the journaled label.
func (r *Replay) Label() string { return r.op.Label }

// Stream emits every journaled record in order.
func (r *Replay) Stream(ctx context.Context, emit func(event.Record) error) error {
	records, err := r.store.Records(r.op.ID)
	if err != nil {
		return fmt.Errorf("replay %s: %w", r.op.ID, err)
	}
	for _, rec := range records {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}
