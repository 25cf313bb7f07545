// Package sieveconfig loads the host tunables a sievec-based deployment
// needs but the core itself has no opinion on: extension timeouts and the
// duplicate-tracker store location. Grounded on funvibe-funxy's
// internal/ext/config.go struct-tag YAML style (doc comment per field,
// yaml.Unmarshal into a plain struct) rather than a flag-parsing or env-var
// scheme, since the corpus's only configuration-file precedent is YAML.
package sieveconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of host-level knobs a reference deployment reads
// from a single YAML file at startup.
type Config struct {
	// Program configures the external-program extension's subprocess
	// timeouts (spec §6: "an external program runner").
	Program ProgramConfig `yaml:"program"`
	// Dupstore configures the duplicate-suppression store.
	Dupstore DupstoreConfig `yaml:"dupstore"`
}

// ProgramConfig configures sieveext.ProgramClient's two independent
// deadlines. Durations are given in milliseconds in the YAML file to match
// the original's client_connect_timeout_msecs naming; zero disables the
// corresponding deadline.
type ProgramConfig struct {
	ConnectTimeoutMS int `yaml:"connect_timeout_ms"`
	IdleTimeoutMS    int `yaml:"idle_timeout_ms"`
}

// ConnectTimeout returns the configured connect deadline as a
// time.Duration.
func (p ProgramConfig) ConnectTimeout() time.Duration {
	return time.Duration(p.ConnectTimeoutMS) * time.Millisecond
}

// IdleTimeout returns the configured idle-read deadline as a
// time.Duration.
func (p ProgramConfig) IdleTimeout() time.Duration {
	return time.Duration(p.IdleTimeoutMS) * time.Millisecond
}

// DupstoreConfig configures internal/dupstore's SQLite-backed duplicate
// tracker.
type DupstoreConfig struct {
	// Path is the sqlite database file path. Empty means in-memory
	// (":memory:"), useful for tests and single-shot sievec invocations.
	Path string `yaml:"path"`
	// RetentionHours is how long a marked id is considered "seen" before
	// it ages out of the store. Zero means "never expire".
	RetentionHours int `yaml:"retention_hours"`
}

// Retention returns RetentionHours as a time.Duration, or zero if
// RetentionHours is zero.
func (d DupstoreConfig) Retention() time.Duration {
	return time.Duration(d.RetentionHours) * time.Hour
}

// Default returns the configuration a reference deployment runs with when
// no file is supplied: generous but finite program timeouts and an
// in-memory, non-expiring dupstore.
func Default() Config {
	return Config{
		Program: ProgramConfig{
			ConnectTimeoutMS: 5_000,
			IdleTimeoutMS:    30_000,
		},
		Dupstore: DupstoreConfig{
			Path:           ":memory:",
			RetentionHours: 0,
		},
	}
}

// Load reads and parses a YAML config file, filling in Default() for any
// field the file omits (yaml.Unmarshal into a pre-populated struct leaves
// fields the document doesn't mention untouched).
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("sieveconfig: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("sieveconfig: parsing %s: %w", path, err)
	}
	return cfg, nil
}
