package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/abelbrown/opstream/internal/phase"
	"github.com/abelbrown/opstream/internal/reveal"
)

// Config is the persistent application configuration
type Config struct {
	Display DisplayConfig `json:"display"`
	Reveal  RevealConfig  `json:"reveal"`
	Search  SearchConfig  `json:"search"`
	Journal JournalConfig `json:"journal"`
	Replay  ReplayConfig  `json:"replay"`
}

// DisplayConfig controls the minimum time each status stays on screen
type DisplayConfig struct {
	MinProgressMs int  `json:"min_progress_ms"`
	MinSettleMs   int  `json:"min_settle_ms"`
	ReduceMotion  bool `json:"reduce_motion"` // collapse both durations to zero
}

// RevealConfig controls progressive disclosure of result lists
type RevealConfig struct {
	Initial int `json:"initial"`
	Step    int `json:"step"`
}

// SearchConfig holds search box preferences
type SearchConfig struct {
	DebounceMs int `json:"debounce_ms"`
}

// JournalConfig controls the sqlite record journal
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"` // defaults to ~/.opstream/journal.db
}

// ReplayConfig controls stream concurrency and journal replay pacing
type ReplayConfig struct {
	RecordsPerSecond float64 `json:"records_per_second"`
	MaxConcurrent    int     `json:"max_concurrent"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Display: DisplayConfig{
			MinProgressMs: 1000,
			MinSettleMs:   1000,
		},
		Reveal: RevealConfig{
			Initial: reveal.DefaultInitial,
			Step:    reveal.DefaultStep,
		},
		Search: SearchConfig{
			DebounceMs: 300,
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Replay: ReplayConfig{
			RecordsPerSecond: 20,
			MaxConcurrent:    4,
		},
	}
}

// Dir returns the opstream home directory (~/.opstream)
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".opstream")
}

// Path returns the path to the config file
func Path() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads config from path. A missing file yields defaults; fields
// absent from the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides settings from the environment:
// OPSTREAM_REDUCE_MOTION (bool) and OPSTREAM_JOURNAL (a path, or "off").
func (c *Config) ApplyEnv() {
	if v := os.Getenv("OPSTREAM_REDUCE_MOTION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Display.ReduceMotion = b
		}
	}
	switch v := os.Getenv("OPSTREAM_JOURNAL"); v {
	case "":
	case "off", "0", "false":
		c.Journal.Enabled = false
	default:
		c.Journal.Enabled = true
		c.Journal.Path = v
	}
}

// PhaseConfig returns the display timer durations. Reduce-motion zeroes
// both, so transitions happen immediately but still in order.
func (c *Config) PhaseConfig() phase.Config {
	if c.Display.ReduceMotion {
		return phase.Config{}
	}
	return phase.Config{
		MinProgress: time.Duration(max(c.Display.MinProgressMs, 0)) * time.Millisecond,
		MinSettle:   time.Duration(max(c.Display.MinSettleMs, 0)) * time.Millisecond,
	}
}

// RevealController returns the configured reveal steps.
func (c *Config) RevealController() reveal.Controller {
	return reveal.New(c.Reveal.Initial, c.Reveal.Step)
}

// DebounceDuration returns the search quiet period.
func (c *Config) DebounceDuration() time.Duration {
	return time.Duration(max(c.Search.DebounceMs, 0)) * time.Millisecond
}

// JournalPath returns the journal database path.
func (c *Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return filepath.Join(Dir(), "journal.db")
}
