// Package config provides configuration management for the ACP client.
package config

import (
	"runtime"
	"time"
)

const (
	defaultDialTimeout    = 10 * time.Second
	defaultRequestTimeout = 10 * time.Second
)

// Config holds behavioural settings shared by a Client and its Session.
type Config struct {
	debug          bool
	noColor        bool
	dialTimeout    time.Duration
	requestTimeout time.Duration
}

// Option configures a Config.
type Option func(*Config)

// WithDebug enables debug-level logging.
func WithDebug(debug bool) Option {
	return func(c *Config) { c.debug = debug }
}

// WithNoColor forces colorless log output regardless of platform default.
func WithNoColor(noColor bool) Option {
	return func(c *Config) { c.noColor = noColor }
}

// WithDialTimeout overrides the default TCP dial timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Config) { c.dialTimeout = d }
}

// WithRequestTimeout overrides the default per-request read timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Config) { c.requestTimeout = d }
}

// New creates a Config with the given options applied over the defaults.
// Color defaults based on platform, matching conventional terminal behaviour.
func New(opts ...Option) *Config {
	cfg := &Config{
		dialTimeout:    defaultDialTimeout,
		requestTimeout: defaultRequestTimeout,
		noColor:        runtime.GOOS != "linux",
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// Debug returns whether debug mode is enabled.
func (c *Config) Debug() bool { return c.debug }

// SetDebug sets the debug mode.
func (c *Config) SetDebug(value bool) { c.debug = value }

// NoColor returns whether colored output is disabled.
func (c *Config) NoColor() bool { return c.noColor }

// SetNoColor sets whether colored output is disabled.
func (c *Config) SetNoColor(value bool) { c.noColor = value }

// DialTimeout returns the TCP dial timeout.
func (c *Config) DialTimeout() time.Duration { return c.dialTimeout }

// RequestTimeout returns the default per-request read timeout.
func (c *Config) RequestTimeout() time.Duration { return c.requestTimeout }

// SetRequestTimeout overrides the per-request read timeout.
func (c *Config) SetRequestTimeout(d time.Duration) { c.requestTimeout = d }
