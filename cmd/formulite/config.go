package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the CLI configuration, read from a YAML file and overridden by
// environment variables and flags, in that order.
type Config struct {
	DSN           string        `yaml:"dsn"`
	Snapshot      string        `yaml:"snapshot"` // "db" (default) or "file"
	SnapshotPath  string        `yaml:"snapshot_path"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	LogLevel      string        `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		DSN:          "file:formulite.db",
		Snapshot:     "db",
		SnapshotPath: "formulite.schema.yaml",
		LogLevel:     "info",
	}
}

// loadConfig reads the YAML file at path over the defaults. A missing file
// is not an error unless the path was given explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	c := defaultConfig()
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return c, nil
	case err != nil:
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// applyEnv overrides the configuration with FORMULITE_* variables.
func (c *Config) applyEnv() error {
	if v := getenv("FORMULITE_DSN"); v != "" {
		c.DSN = v
	}
	if v := getenv("FORMULITE_SNAPSHOT"); v != "" {
		c.Snapshot = v
	}
	if v := getenv("FORMULITE_SNAPSHOT_PATH"); v != "" {
		c.SnapshotPath = v
	}
	if v := getenv("FORMULITE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("FORMULITE_SLOW_THRESHOLD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FORMULITE_SLOW_THRESHOLD: %w", err)
		}
		c.SlowThreshold = d
	}
	return nil
}

// applyFlags overrides the configuration with the flags set on fs.
func (c *Config) applyFlags(fs *flag.FlagSet, dsn, snapshot, level *string) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dsn":
			c.DSN = *dsn
		case "snapshot":
			c.Snapshot = *snapshot
		case "log-level":
			c.LogLevel = *level
		}
	})
}

func (c *Config) validate() error {
	switch c.Snapshot {
	case "db", "file":
	default:
		return fmt.Errorf("unknown snapshot backend %q, expect db or file", c.Snapshot)
	}
	if c.DSN == "" {
		return errors.New("missing dsn")
	}
	_, err := c.level()
	return err
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}

func getenv(k string) string {
	return strings.TrimSpace(os.Getenv(k))
}
