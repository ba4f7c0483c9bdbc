// Package scenario loads scripted operations from YAML and plays them back
// with their original timing, standing in for a live transport.
//
// A scenario file looks like:
//
//	name: slow search
//	operations:
//	  - label: search drive
//	    records:
//	      - at: 0s
//	        kind: operation.start
//	        items:
//	          - {id: d1, name: Quarterly report, source: drive}
//	      - at: 50ms
//	        kind: operation.end
package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abelbrown/opstream/internal/event"
)

// ErrNoOperations is returned for a scenario without any operation.
var ErrNoOperations = errors.New("scenario has no operations")

// Scenario is a set of operations started together.
type Scenario struct {
	Name       string   `yaml:"name"`
	Operations []Script `yaml:"operations"`
}

// Script is the timed record stream of one operation.
type Script struct {
	Label   string `yaml:"label"`
	Records []Step `yaml:"records"`
}

// Step is one record delivered At after the stream opens.
type Step struct {
	At    time.Duration  `yaml:"at"`
	Kind  event.Kind     `yaml:"kind"`
	Items []event.Item   `yaml:"items,omitempty"`
	Data  map[string]any `yaml:"data,omitempty"`
}

// Record converts the step into an event record.
func (s Step) Record() (event.Record, error) {
	r := event.Record{Kind: s.Kind, Items: s.Items}
	if len(s.Data) > 0 {
		data, err := json.Marshal(s.Data)
		if err != nil {
			return event.Record{}, fmt.Errorf("encode data of %s: %w", s.Kind, err)
		}
		r.Data = data
	}
	return r, nil
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if len(sc.Operations) == 0 {
		return ErrNoOperations
	}
	for i, op := range sc.Operations {
		if op.Label == "" {
			sc.Operations[i].Label = fmt.Sprintf("operation %d", i+1)
		}
		var last time.Duration
		for j, st := range op.Records {
			if st.Kind == "" {
				return fmt.Errorf("operation %d record %d: missing kind", i+1, j+1)
			}
			if st.At < 0 {
				return fmt.Errorf("operation %d record %d: negative at %v", i+1, j+1, st.At)
			}
			if st.At < last {
				return fmt.Errorf("operation %d record %d: at %v before previous record (%v)", i+1, j+1, st.At, last)
			}
			last = st.At
		}
	}
	return nil
}

// Duration returns when the last record of any operation is delivered.
func (sc *Scenario) Duration() time.Duration {
	var d time.Duration
	for _, op := range sc.Operations {
		if n := len(op.Records); n > 0 {
			d = max(d, op.Records[n-1].At)
		}
	}
	return d
}

// Playbacks returns one source per operation. speed scales time: 2 plays
// twice as fast, 0 delivers every record immediately.
func (sc *Scenario) Playbacks(speed float64) []*Playback {
	out := make([]*Playback, 0, len(sc.Operations))
	for _, op := range sc.Operations {
		out = append(out, &Playback{script: op, speed: speed, origin: sc.Name})
	}
	return out
}
