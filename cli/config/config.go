package config

import (
	"fmt"
	"time"
)

// Config represents an ocean.yaml configuration file.
// All values are optional and act as defaults for ocean CLI flags.
// CLI flags always override config values.
type Config struct {
	// DBPath is the SQLite database file path.
	DBPath string `yaml:"db_path"`
	// InstanceID identifies this process as a lock holder. Defaults to a
	// generated id when empty.
	InstanceID string `yaml:"instance_id"`
	// LockTTL is the advance lock duration (e.g. "30s").
	LockTTL Duration `yaml:"lock_ttl"`
	Events  EventsConfig  `yaml:"events"`
	Adapter AdapterConfig `yaml:"adapter"`
}

// EventsConfig holds event-log retention defaults from the config file.
type EventsConfig struct {
	// TTL is the event retention window (e.g. "168h").
	TTL Duration `yaml:"ttl"`
	// GCInterval is the minimum spacing between opportunistic sweeps.
	GCInterval Duration `yaml:"gc_interval"`
}

// AdapterConfig holds event mirror defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
