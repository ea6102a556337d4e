package dfc

import "log/slog"

const (
	// DefaultMinPatternLength accepts single-byte patterns.
	DefaultMinPatternLength = 1

	// DefaultMaxPatternLength is the longest pattern accepted by default.
	DefaultMaxPatternLength = 512
)

// Config holds engine construction parameters.
type Config struct {
	// MinPatternLength is the shortest accepted pattern. Values below 1 are
	// treated as 1; empty patterns are never accepted.
	MinPatternLength int

	// MaxPatternLength is the longest accepted pattern.
	MaxPatternLength int

	// Logger receives build diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Config)

// WithMinPatternLength sets the shortest accepted pattern.
func WithMinPatternLength(n int) Option {
	return func(c *Config) {
		c.MinPatternLength = n
	}
}

// WithMaxPatternLength sets the longest accepted pattern.
func WithMaxPatternLength(n int) Option {
	return func(c *Config) {
		c.MaxPatternLength = n
	}
}

// WithLogger sets the logger used during Compile.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

func defaultConfig() Config {
	return Config{
		MinPatternLength: DefaultMinPatternLength,
		MaxPatternLength: DefaultMaxPatternLength,
	}
}

func (c *Config) normalize() {
	if c.MinPatternLength < 1 {
		c.MinPatternLength = 1
	}
	if c.MaxPatternLength < c.MinPatternLength {
		c.MaxPatternLength = c.MinPatternLength
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}
