//go:build cgo && hyperscan

package matcher

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/flier/gohs/hyperscan"
	"github.com/praetorian-inc/sieve/pkg/dfc"
)

// HyperscanEngine compiles literals into a Hyperscan block database.
type HyperscanEngine struct {
	mu       sync.Mutex // scratch is single-threaded
	db       hyperscan.BlockDatabase
	scratch  *hyperscan.Scratch
	patterns []*dfc.Pattern
	index    map[string]*dfc.Pattern
	longest  int
}

// NewHyperscanEngine returns an empty Hyperscan engine.
func NewHyperscanEngine() (Engine, error) {
	return &HyperscanEngine{index: make(map[string]*dfc.Pattern)}, nil
}

// AddPattern implements Engine.
func (e *HyperscanEngine) AddPattern(pattern []byte, noCase bool, sid uint32) error {
	if e.db != nil {
		return errCompiled
	}
	if len(pattern) == 0 || len(pattern) > dfc.DefaultMaxPatternLength {
		return &dfc.PatternLengthError{Length: len(pattern), Min: 1, Max: dfc.DefaultMaxPatternLength}
	}

	key := fmt.Sprintf("%t:%s", noCase, pattern)
	if p, ok := e.index[key]; ok {
		if !slices.Contains(p.SIDs, sid) {
			p.SIDs = append(p.SIDs, sid)
		}
		return nil
	}
	p := &dfc.Pattern{
		ID:      uint32(len(e.patterns)),
		Content: bytes.Clone(pattern),
		Folded:  dfc.Fold(pattern),
		NoCase:  noCase,
		SIDs:    []uint32{sid},
	}
	e.patterns = append(e.patterns, p)
	e.index[key] = p
	e.longest = max(e.longest, len(pattern))
	return nil
}

// literalExpr escapes every byte so the expression matches it verbatim.
func literalExpr(p []byte) string {
	var sb strings.Builder
	for _, c := range p {
		fmt.Fprintf(&sb, `\x%02x`, c)
	}
	return sb.String()
}

// Compile implements Engine.
func (e *HyperscanEngine) Compile() error {
	if e.db != nil {
		return errCompiled
	}
	if len(e.patterns) == 0 {
		return fmt.Errorf("no patterns provided")
	}

	patterns := make([]*hyperscan.Pattern, len(e.patterns))
	for i, p := range e.patterns {
		flags := hyperscan.SomLeftMost
		if p.NoCase {
			flags |= hyperscan.Caseless
		}
		hp := hyperscan.NewPattern(literalExpr(p.Content), flags)
		hp.Id = i
		patterns[i] = hp
	}

	db, err := hyperscan.NewBlockDatabase(patterns...)
	if err != nil {
		return fmt.Errorf("failed to compile Hyperscan database: %w", err)
	}
	scratch, err := hyperscan.NewScratch(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to allocate Hyperscan scratch: %w", err)
	}
	e.db = db
	e.scratch = scratch
	return nil
}

// Search implements Engine. Occurrences are reported in end-offset order.
func (e *HyperscanEngine) Search(buf []byte, fn dfc.MatchFunc) (int, error) {
	if e.db == nil {
		return 0, errNotCompiled
	}
	if len(buf) == 0 {
		return 0, nil
	}

	total := 0
	onMatch := func(id uint, from, to uint64, flags uint, context interface{}) error {
		if int(id) >= len(e.patterns) {
			return fmt.Errorf("invalid pattern ID from Hyperscan: %d", id)
		}
		p := e.patterns[id]
		if fn != nil {
			fn(p.Content, p.SIDs, int(from))
		}
		total += len(p.SIDs)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.db.Scan(buf, e.scratch, onMatch, nil); err != nil {
		return 0, fmt.Errorf("Hyperscan scan failed: %w", err)
	}
	return total, nil
}

// LongestPattern implements Engine.
func (e *HyperscanEngine) LongestPattern() int {
	return e.longest
}

// Close releases the scratch space and database.
func (e *HyperscanEngine) Close() error {
	if e.scratch != nil {
		if err := e.scratch.Free(); err != nil {
			return fmt.Errorf("failed to free scratch: %w", err)
		}
		e.scratch = nil
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		e.db = nil
	}
	return nil
}
