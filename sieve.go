// Package sieve searches byte content for large sets of literal patterns.
//
// Patterns come from detection rules. They are compiled into a cascading
// direct filter engine that rejects most input positions with a few bit
// tests and verifies the rest against hashed pattern buckets.
//
// # Basic Usage
//
// Create a scanner with builtin rules and scan content:
//
//	scanner, err := sieve.NewScanner()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer scanner.Close()
//
//	matches, err := scanner.ScanString("GET /../../etc/passwd HTTP/1.1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, match := range matches {
//	    fmt.Printf("Found %s (sid %d) at offset %d\n", match.RuleName, match.SID, match.Location.Offset.Start)
//	}
//
// # Streaming
//
// Large inputs can be scanned without holding them in memory:
//
//	f, _ := os.Open("capture.bin")
//	err := scanner.ScanReader(ctx, f, func(m *sieve.Match) error {
//	    fmt.Println(m.RuleID, m.Location.Offset.Start)
//	    return nil
//	})
package sieve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/praetorian-inc/sieve/pkg/matcher"
	"github.com/praetorian-inc/sieve/pkg/rule"
	"github.com/praetorian-inc/sieve/pkg/types"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/praetorian-inc/sieve" without subpackages.
type (
	// Match represents a single pattern occurrence.
	Match = types.Match

	// Rule groups literal patterns under one detection.
	Rule = types.Rule

	// Literal is one pattern of a rule.
	Literal = types.Literal

	// Location describes where a match was found within content.
	Location = types.Location

	// Snippet contains the matched bytes with surrounding context.
	Snippet = types.Snippet
)

// Search engines accepted by WithEngine.
const (
	EngineDFC         = matcher.EngineDFC
	EngineAhoCorasick = matcher.EngineAhoCorasick
	EngineHyperscan   = matcher.EngineHyperscan
)

// Scanner provides literal pattern detection.
type Scanner struct {
	matcher *matcher.LiteralMatcher
	config  *scannerConfig
	mu      sync.RWMutex
}

// scannerConfig holds scanner configuration.
type scannerConfig struct {
	rules        []*types.Rule
	engine       string
	contextLines int
	logger       *slog.Logger
}

// Option configures a Scanner.
type Option func(*scannerConfig)

// WithRules uses custom rules instead of builtin rules.
func WithRules(rules []*Rule) Option {
	return func(c *scannerConfig) {
		c.rules = rules
	}
}

// WithEngine selects the search engine. Default is EngineDFC.
func WithEngine(name string) Option {
	return func(c *scannerConfig) {
		c.engine = name
	}
}

// WithContextLines sets the number of context lines to include around matches.
// Default is 2 lines before and after.
func WithContextLines(lines int) Option {
	return func(c *scannerConfig) {
		c.contextLines = lines
	}
}

// WithLogger sets the logger used while compiling and scanning.
func WithLogger(logger *slog.Logger) Option {
	return func(c *scannerConfig) {
		c.logger = logger
	}
}

// NewScanner creates a new Scanner with the given options.
//
// By default, the scanner:
//   - Uses all builtin detection rules
//   - Uses the DFC engine
//   - Includes 2 lines of context around matches
func NewScanner(opts ...Option) (*Scanner, error) {
	config := &scannerConfig{
		engine:       EngineDFC,
		contextLines: 2,
	}

	for _, opt := range opts {
		opt(config)
	}

	if config.rules == nil {
		rules, err := LoadBuiltinRules()
		if err != nil {
			return nil, fmt.Errorf("loading builtin rules: %w", err)
		}
		config.rules = rules
	}

	m, err := matcher.NewLiteral(matcher.Config{
		Rules:        config.rules,
		Engine:       config.engine,
		ContextLines: config.contextLines,
		Logger:       config.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}

	return &Scanner{
		matcher: m,
		config:  config,
	}, nil
}

// ScanString scans a string and returns all matches.
func (s *Scanner) ScanString(content string) ([]*Match, error) {
	return s.ScanBytes([]byte(content))
}

// ScanBytes scans raw bytes and returns all matches ordered by offset.
func (s *Scanner) ScanBytes(content []byte) ([]*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.matcher == nil {
		return nil, fmt.Errorf("scanner is closed")
	}
	return s.matcher.Match(content)
}

// ScanFile reads and scans a file.
func (s *Scanner) ScanFile(path string) ([]*Match, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return s.ScanBytes(content)
}

// ScanReader streams r through the scanner, calling fn for each match.
// Matches carry absolute byte offsets but no line positions or context.
// An error returned by fn stops the scan and is returned.
func (s *Scanner) ScanReader(ctx context.Context, r io.Reader, fn func(*Match) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.matcher == nil {
		return fmt.Errorf("scanner is closed")
	}
	_, err := s.matcher.ScanReader(ctx, r, types.BlobID{}, fn)
	return err
}

// Close releases scanner resources.
// Always call Close when done with the scanner.
func (s *Scanner) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.matcher == nil {
		return nil
	}
	err := s.matcher.Close()
	s.matcher = nil
	return err
}

// Engine returns the name of the search engine in use.
func (s *Scanner) Engine() string {
	return s.config.engine
}

// RuleCount returns the number of detection rules loaded.
func (s *Scanner) RuleCount() int {
	return len(s.config.rules)
}

// Rules returns a copy of the loaded detection rules.
func (s *Scanner) Rules() []*Rule {
	rules := make([]*Rule, len(s.config.rules))
	copy(rules, s.config.rules)
	return rules
}

// LoadRulesFromFile loads detection rules from a YAML or Snort .rules file.
// Use this with WithRules to create a scanner with custom rules.
//
// Example:
//
//	rules, err := sieve.LoadRulesFromFile("/path/to/local.rules")
//	if err != nil {
//	    return err
//	}
//	scanner, err := sieve.NewScanner(sieve.WithRules(rules))
func LoadRulesFromFile(path string) ([]*Rule, error) {
	return rule.NewLoader().LoadRulesFile(path)
}

// LoadBuiltinRules returns all builtin detection rules.
// This can be used to inspect available rules or create a subset.
func LoadBuiltinRules() ([]*Rule, error) {
	return rule.NewLoader().LoadBuiltinRules()
}
