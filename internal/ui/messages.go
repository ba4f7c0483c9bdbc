// Package ui provides the Bubble Tea TUI for opstream.
package ui

import (
	"github.com/abelbrown/opstream/internal/event"
	"github.com/abelbrown/opstream/internal/phase"
)

// OperationBegan is sent when a transport opens a new operation stream.
type OperationBegan struct {
	ID    string
	Label string
}

// RecordArrived is sent for every record delivered on a stream.
type RecordArrived struct {
	ID     string
	Seq    int
	Record event.Record
}

// StreamClosed is sent when a stream ends. Err is nil on a clean close.
type StreamClosed struct {
	ID  string
	Err error
}

// PhaseChanged is sent when an operation's display timer moves.
type PhaseChanged struct {
	ID    string
	Phase phase.Phase
}

// OperationSettled is sent once per operation when it reaches Settled.
type OperationSettled struct {
	ID string
}

// QueryCommitted is sent when the search box has been quiet long enough.
type QueryCommitted struct {
	Query string
}

// PaginationReset is sent just before every QueryCommitted.
type PaginationReset struct{}
