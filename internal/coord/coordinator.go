// Package coord runs operation streams in the background and forwards their
// records to the UI program.
package coord

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/opstream/internal/event"
	"github.com/abelbrown/opstream/internal/logging"
	"github.com/abelbrown/opstream/internal/otel"
	"github.com/abelbrown/opstream/internal/store"
	"github.com/abelbrown/opstream/internal/ui"
)

// defaultMaxConcurrent limits parallel streams when no limit is configured.
const defaultMaxConcurrent = 4

// Source is a transport for one operation: it delivers the operation's
// records in order and returns when the stream ends.
type Source interface {
	Label() string
	Stream(ctx context.Context, emit func(event.Record) error) error
}

// identified sources carry their own operation ID (journal replays).
type identified interface {
	ID() string
}

// originated sources name where they came from (scenario file).
type originated interface {
	Origin() string
}

// Sender receives UI messages. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Journal persists records. *store.Store satisfies it.
type Journal interface {
	CreateOperation(op store.Operation) error
	AppendRecord(opID string, seq int, r event.Record) (bool, error)
	FinishOperation(id string, at time.Time) error
}

// Coordinator manages background streams.
// Uses context cancellation as the ONLY stop mechanism.
type Coordinator struct {
	sources []Source // IMMUTABLE: set at construction, never modified
	journal Journal  // optional
	obs     *otel.Logger
	limit   int
	wg      sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithJournal records every stream to j.
func WithJournal(j Journal) Option {
	return func(c *Coordinator) { c.journal = j }
}

// WithLimit caps how many streams run at once.
func WithLimit(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithLogger emits stream events to l.
func WithLogger(l *otel.Logger) Option {
	return func(c *Coordinator) { c.obs = l }
}

// New creates a Coordinator for sources.
func New(sources []Source, opts ...Option) *Coordinator {
	// Copy sources slice to ensure immutability
	sourcesCopy := make([]Source, len(sources))
	copy(sourcesCopy, sources)

	c := &Coordinator{sources: sourcesCopy, limit: defaultMaxConcurrent}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start runs every source in the background. Call with a cancellable
// context.
func (c *Coordinator) Start(ctx context.Context, program Sender) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Run(ctx, program)
	}()
}

// Wait blocks until the background goroutine exits.
// Call after canceling the context passed to Start.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Run streams every source, at most limit at a time, and returns when all
// streams have closed. Stream errors are reported per operation, never as a
// group failure.
func (c *Coordinator) Run(ctx context.Context, program Sender) {
	var g errgroup.Group
	g.SetLimit(c.limit)

	for _, src := range c.sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			c.runSource(ctx, src, program)
			return nil // never fail the group - errors reported per-source
		})
	}

	_ = g.Wait()
}

// runSource streams one source, journaling and forwarding each record.
func (c *Coordinator) runSource(ctx context.Context, src Source, program Sender) {
	id := uuid.NewString()
	if s, ok := src.(identified); ok {
		id = s.ID()
	}
	origin := ""
	if s, ok := src.(originated); ok {
		origin = s.Origin()
	}
	log := logging.WithPrefix("coord")

	send := func(msg tea.Msg) {
		// Handle nil program gracefully for testing
		if program != nil {
			program.Send(msg)
		}
	}

	if c.journal != nil {
		if err := c.journal.CreateOperation(store.Operation{ID: id, Label: src.Label(), Source: origin, Began: time.Now()}); err != nil {
			log.Error("journal create failed", "op", id, "err", err)
			c.obs.Error(otel.KindStoreError, "coord", err)
		}
	}

	c.obs.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindStreamOpen, Comp: "coord", OpID: id, Msg: src.Label()})
	send(ui.OperationBegan{ID: id, Label: src.Label()})

	seq := 0
	start := time.Now()
	err := src.Stream(ctx, func(r event.Record) error {
		if c.journal != nil {
			if _, err := c.journal.AppendRecord(id, seq, r); err != nil {
				log.Warn("journal append failed", "op", id, "seq", seq, "err", err)
				c.obs.Error(otel.KindStoreError, "coord", err)
			}
		}
		send(ui.RecordArrived{ID: id, Seq: seq, Record: r})
		seq++
		return nil
	})

	if c.journal != nil {
		if jerr := c.journal.FinishOperation(id, time.Now()); jerr != nil && !errors.Is(jerr, store.ErrNotFound) {
			log.Warn("journal finish failed", "op", id, "err", jerr)
		}
	}

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		c.obs.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindStreamClose, Comp: "coord", OpID: id, Count: seq, Dur: time.Since(start)})
	default:
		log.Error("stream failed", "op", id, "label", src.Label(), "err", err)
		c.obs.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindStreamError, Comp: "coord", OpID: id, Count: seq, Err: err.Error()})
	}
	send(ui.StreamClosed{ID: id, Err: err})
}
