package event

import (
	"fmt"
	"sync"
)

// InvalidOrderError is returned by a strict Log when an operation.end
// arrives before any operation.start.
type InvalidOrderError struct {
	Kind     Kind
	Position int
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("event log: %s at position %d precedes %s", e.Kind, e.Position, KindOperationStart)
}

// Log is the append-only record store for exactly one operation instance.
// Safe for concurrent use, though each log has a single owner.
type Log struct {
	mu      sync.RWMutex
	records []Record
	strict  bool
	started bool
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithStrictOrder rejects an operation.end that precedes operation.start.
// Without it the log accepts everything and the deriver ignores the end.
func WithStrictOrder() LogOption {
	return func(l *Log) { l.strict = true }
}

// NewLog creates an empty log.
func NewLog(opts ...LogOption) *Log {
	l := &Log{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append adds r to the end of the log.
func (l *Log) Append(r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch r.Kind {
	case KindOperationStart:
		l.started = true
	case KindOperationEnd:
		if l.strict && !l.started {
			return &InvalidOrderError{Kind: r.Kind, Position: len(l.records)}
		}
	}
	l.records = append(l.records, r.clone())
	return nil
}

// Len returns the number of records appended so far.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Snapshot returns an immutable view of every record observed so far.
// O(1): the view shares storage with the log but its length and capacity are
// fixed, so later appends never show through.
func (l *Log) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.records)
	return Snapshot{records: l.records[:n:n]}
}

// Snapshot is a read-only prefix of a Log.
type Snapshot struct {
	records []Record
}

// NewSnapshot wraps records that did not come from a Log (journal replay,
// files). The slice is copied.
func NewSnapshot(records []Record) Snapshot {
	cp := make([]Record, len(records))
	for i, r := range records {
		cp[i] = r.clone()
	}
	return Snapshot{records: cp}
}

// Len returns the number of records in the snapshot.
func (s Snapshot) Len() int { return len(s.records) }

// At returns the i-th record.
func (s Snapshot) At(i int) Record { return s.records[i] }

// Records returns the records in arrival order. Callers must not modify them.
func (s Snapshot) Records() []Record { return s.records }

// Prefix returns the first n records as a snapshot.
func (s Snapshot) Prefix(n int) Snapshot {
	if n > len(s.records) {
		n = len(s.records)
	}
	if n < 0 {
		n = 0
	}
	return Snapshot{records: s.records[:n:n]}
}
