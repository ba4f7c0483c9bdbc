// Package event holds the ordered record log of a single remote operation.
//
// Records arrive from a transport in order and are never modified once
// appended. The log has no behaviour beyond insertion and typed lookup; all
// interpretation happens in package reconcile.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies a record type. Dot-delimited: "<subject>.<action>".
type Kind string

const (
	KindOperationStart Kind = "operation.start" // carries the initial result list
	KindOperationItems Kind = "operation.items" // appends result items
	KindOperationEnd   Kind = "operation.end"   // logical completion
)

// Lifecycle reports whether the kind is one the reconciliation core reads.
// Every other kind is domain-specific and preserved but ignored.
func (k Kind) Lifecycle() bool {
	switch k {
	case KindOperationStart, KindOperationItems, KindOperationEnd:
		return true
	}
	return false
}

// Item is one result document returned by an operation.
type Item struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Kind      string    `json:"kind,omitempty" yaml:"kind,omitempty"`
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"`
	URL       string    `json:"url,omitempty" yaml:"url,omitempty"`
	Published time.Time `json:"published,omitzero" yaml:"published,omitempty"`
}

// DisplayName is the text the search query matches against.
func (i Item) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ID
}

// Record is one immutable unit of the operation's event stream.
type Record struct {
	Kind  Kind            `json:"kind"`
	Items []Item          `json:"items,omitempty"`
	At    time.Time       `json:"at,omitzero"`
	Data  json.RawMessage `json:"data,omitempty"` // payload of domain-specific kinds
}

// Start builds an operation.start record.
func Start(items ...Item) Record {
	return Record{Kind: KindOperationStart, Items: items}
}

// Items builds an operation.items record.
func Items(items ...Item) Record {
	return Record{Kind: KindOperationItems, Items: items}
}

// End builds an operation.end record.
func End() Record {
	return Record{Kind: KindOperationEnd}
}

// clone returns a deep copy so the log never aliases caller memory.
func (r Record) clone() Record {
	if r.Items != nil {
		items := make([]Item, len(r.Items))
		copy(items, r.Items)
		r.Items = items
	}
	if r.Data != nil {
		data := make(json.RawMessage, len(r.Data))
		copy(data, r.Data)
		r.Data = data
	}
	return r
}

// ParseRecord decodes one JSON record as delivered by a transport.
func ParseRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if r.Kind == "" {
		return Record{}, fmt.Errorf("decode record: missing kind")
	}
	return r, nil
}
