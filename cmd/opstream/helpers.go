package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abelbrown/opstream/internal/config"
	"github.com/abelbrown/opstream/internal/operation"
	"github.com/abelbrown/opstream/internal/otel"
	"github.com/abelbrown/opstream/internal/store"
)

// eventRingSize is how many recent events the debug overlay keeps.
const eventRingSize = 256

// eventLogPath returns the path to events.jsonl.
func eventLogPath() string {
	return filepath.Join(config.Dir(), "events.jsonl")
}

// openJournal opens the journal, or returns nil when disabled.
func openJournal() (*store.Store, error) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}
	path := cfg.JournalPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return st, nil
}

// requireJournal opens the journal or fails when it is disabled.
func requireJournal() (*store.Store, error) {
	st, err := openJournal()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("journal is disabled (journal.enabled=false or OPSTREAM_JOURNAL=off)")
	}
	return st, nil
}

// openEventLog appends structured events to events.jsonl and mirrors them
// into a ring buffer. The returned close func flushes both.
func openEventLog() (*otel.Logger, *otel.RingBuffer, func(), error) {
	path := eventLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open event log: %w", err)
	}
	l := otel.NewLogger(f)
	ring := otel.NewRingBuffer(eventRingSize)
	l.SetRingBuffer(ring)
	l.Info(otel.KindStartup, "main", "opstream "+version)
	return l, ring, func() {
		l.Info(otel.KindShutdown, "main", "")
		l.Close()
		f.Close()
	}, nil
}

// settings builds registry settings from the loaded config.
func settings(l *otel.Logger) operation.Settings {
	s := operation.DefaultSettings()
	s.Display = cfg.PhaseConfig()
	s.Reveal = cfg.RevealController()
	s.Logger = l
	return s
}
