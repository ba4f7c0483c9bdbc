// Package otel provides structured observability for opstream.
//
// Events are typed structs serialized as JSONL lines. The Logger writes them
// asynchronously through a buffered channel; an optional RingBuffer keeps the
// most recent ones in memory for the debug overlay.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an observability event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Operation lifecycle
	KindOpBegin  EventKind = "op.begin"
	KindOpRecord EventKind = "op.record"
	KindOpStart  EventKind = "op.start"
	KindOpEnd    EventKind = "op.end"
	KindOpClose  EventKind = "op.close"

	// Display timer
	KindPhaseTransition EventKind = "phase.transition"
	KindPhaseSettle     EventKind = "phase.settle"
	KindPhaseCancel     EventKind = "phase.cancel"

	// Search and filters
	KindSearchCommit EventKind = "search.commit"
	KindFilterChange EventKind = "filter.change"
	KindFilterClear  EventKind = "filter.clear"

	// Transport stand-ins
	KindStreamOpen  EventKind = "stream.open"
	KindStreamClose EventKind = "stream.close"
	KindStreamError EventKind = "stream.error"

	// Store
	KindStoreError EventKind = "store.error"

	// UI message trace (OPSTREAM_TRACE)
	KindUIMessage EventKind = "ui.msg"

	// System
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"
)

// Event is the universal observability record. Every field except Kind and
// Time is optional.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"` // "phase", "operation", "coord", "ui", "store"
	SessionID string         `json:"session_id,omitempty"`
	OpID      string         `json:"op,omitempty"`
	From      string         `json:"from,omitempty"` // previous phase on transitions
	To        string         `json:"to,omitempty"`
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"`
	Count     int            `json:"count,omitempty"`
	Query     string         `json:"query,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
