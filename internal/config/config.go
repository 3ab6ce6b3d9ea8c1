// Package config provides configuration types and defaults for tracq.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"tracq/internal/compile"
	"tracq/internal/log"
	"tracq/internal/service"
	"tracq/internal/tracing"
)

// ConnectionConfig is one named tracker profile.
type ConnectionConfig struct {
	// Kind selects the wire grammar: "bugzilla", "redmine", or "github".
	Kind string `mapstructure:"kind" yaml:"kind"`

	Base        string `mapstructure:"base" yaml:"base"`
	Token       string `mapstructure:"token" yaml:"token,omitempty"`
	User        string `mapstructure:"user" yaml:"user,omitempty"`
	Repo        string `mapstructure:"repo" yaml:"repo,omitempty"`
	Timeout     string `mapstructure:"timeout" yaml:"timeout,omitempty"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency,omitempty"`
	Insecure    bool   `mapstructure:"insecure" yaml:"insecure,omitempty"`
}

// Config holds all configuration options for tracq.
type Config struct {
	// Default names the connection used when --connection is not given.
	Default     string                      `mapstructure:"default" yaml:"default"`
	Connections map[string]ConnectionConfig `mapstructure:"connections" yaml:"connections"`
	Tracing     tracing.Config              `mapstructure:"tracing" yaml:"tracing"`
}

// Defaults returns the configuration written into a fresh config file.
func Defaults() Config {
	return Config{
		Connections: map[string]ConnectionConfig{},
		Tracing:     tracing.DefaultConfig(),
	}
}

// Resolve looks up a connection profile by name (or the default when name is
// empty) and returns its backend plus the service connection.
func (c Config) Resolve(name string) (compile.Backend, service.Connection, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" {
		if len(c.Connections) == 1 {
			for only := range c.Connections {
				name = only
			}
		} else {
			return 0, service.Connection{}, fmt.Errorf("no connection selected: set default or pass --connection (have: %v)", c.connectionNames())
		}
	}
	cc, ok := c.Connections[name]
	if !ok {
		return 0, service.Connection{}, fmt.Errorf("unknown connection %q (have: %v)", name, c.connectionNames())
	}
	backend, err := compile.ParseBackend(cc.Kind)
	if err != nil {
		return 0, service.Connection{}, fmt.Errorf("connection %q: %w", name, err)
	}
	conn, err := cc.connection()
	if err != nil {
		return 0, service.Connection{}, fmt.Errorf("connection %q: %w", name, err)
	}
	log.Debug(log.CatConfig, "connection resolved", "name", name, "kind", cc.Kind, "base", cc.Base)
	return backend, conn, nil
}

func (cc ConnectionConfig) connection() (service.Connection, error) {
	if cc.Base == "" {
		return service.Connection{}, fmt.Errorf("base URL not set")
	}
	conn := service.Connection{
		Base:        cc.Base,
		Token:       cc.Token,
		User:        cc.User,
		Repo:        cc.Repo,
		Concurrency: cc.Concurrency,
		Insecure:    cc.Insecure,
	}
	if cc.Timeout != "" {
		d, err := time.ParseDuration(cc.Timeout)
		if err != nil {
			return service.Connection{}, fmt.Errorf("invalid timeout %q: %w", cc.Timeout, err)
		}
		conn.Timeout = d
	}
	return conn, nil
}

func (c Config) connectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultTracesFilePath returns ~/.config/tracq/traces/traces.jsonl, or ""
// when the home directory is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tracq", "traces", "traces.jsonl")
}

// DefaultLogFilePath returns ~/.config/tracq/tracq.log, or "" when the home
// directory is unavailable.
func DefaultLogFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tracq", "tracq.log")
}
