// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package sweep

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// The stock settings, mirroring the classic CLI defaults.
const (
	DefaultInterval       = time.Second
	DefaultTimeout        = 1500 * time.Millisecond
	DefaultResolveTimeout = time.Second
	DefaultCount          = 4
)

// Config describes a probing run: which hosts to sweep, how often, and for
// how long. The zero values of Interval, Timeout, ResolveTimeout and Workers
// get filled in by SetDefaults; a Count of 0 means an unbounded run.
type Config struct {
	Hosts          []string      // ordered probe targets; duplicates are distinct targets.
	Interval       time.Duration // distance between round starts.
	Timeout        time.Duration // per-probe upper bound.
	ResolveTimeout time.Duration // per-reverse-lookup upper bound, independent of Timeout.
	Count          int           // number of rounds, 0 = unbounded.
	Workers        int           // probe/resolver pool sizes.
}

// ConfigError reports an invalid Config, naming the offending field. It is
// surfaced before any round starts and is fatal to the run.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// SetDefaults fills in the stock settings for all unset fields. Count is
// left alone, as 0 is the valid "unbounded" sentinel.
func (c *Config) SetDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ResolveTimeout == 0 {
		c.ResolveTimeout = DefaultResolveTimeout
	}
	if c.Workers == 0 {
		// One probe worker per host, so a round always fans out fully
		// concurrently.
		c.Workers = len(c.Hosts)
	}
}

// Validate checks the configuration, returning a [*ConfigError] for the
// first problem found.
func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return &ConfigError{Field: "hosts", Reason: "must not be empty"}
	}
	for idx, host := range c.Hosts {
		if strings.TrimSpace(host) == "" {
			return &ConfigError{
				Field:  fmt.Sprintf("hosts[%d]", idx),
				Reason: "must not be blank",
			}
		}
	}
	if c.Interval <= 0 {
		return &ConfigError{Field: "interval", Reason: "must be positive"}
	}
	if c.Timeout <= 0 {
		return &ConfigError{Field: "timeout", Reason: "must be positive"}
	}
	if c.ResolveTimeout <= 0 {
		return &ConfigError{Field: "resolveTimeout", Reason: "must be positive"}
	}
	if c.Count < 0 {
		return &ConfigError{Field: "count", Reason: "must not be negative"}
	}
	if c.Workers <= 0 {
		return &ConfigError{Field: "workers", Reason: "must be positive"}
	}
	return nil
}

// fileConfig is the YAML schema of a run configuration file; durations are
// Go duration strings, such as "1s" or "750ms".
type fileConfig struct {
	Hosts          []string `yaml:"hosts"`
	Interval       string   `yaml:"interval"`
	Timeout        string   `yaml:"timeout"`
	ResolveTimeout string   `yaml:"resolveTimeout"`
	Count          *int     `yaml:"count"`
	Workers        int      `yaml:"workers"`
}

// Load reads a run configuration from the specified YAML file. Unset fields
// keep their zero values, so SetDefaults applies afterwards; an unset count
// defaults to DefaultCount (and not to unbounded, which needs an explicit
// "count: 0").
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read configuration: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("cannot decode configuration %q: %w", path, err)
	}
	cfg.Hosts = fc.Hosts
	cfg.Workers = fc.Workers
	if fc.Count != nil {
		cfg.Count = *fc.Count
	} else {
		cfg.Count = DefaultCount
	}
	for _, d := range []struct {
		name  string
		value string
		field *time.Duration
	}{
		{"interval", fc.Interval, &cfg.Interval},
		{"timeout", fc.Timeout, &cfg.Timeout},
		{"resolveTimeout", fc.ResolveTimeout, &cfg.ResolveTimeout},
	} {
		if d.value == "" {
			continue
		}
		dur, err := time.ParseDuration(d.value)
		if err != nil {
			return cfg, fmt.Errorf("cannot parse %s %q: %w", d.name, d.value, err)
		}
		*d.field = dur
	}
	return cfg, nil
}
