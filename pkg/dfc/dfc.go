// Package dfc implements a cascading-filter engine for matching many
// literal byte patterns in one pass.
//
// Patterns are grouped by length into classes. Each class samples a small
// fragment near the pattern tail into 65536-bit filters and a hashed compact
// table. Search slides a two-byte window over the input, consults the
// filters from cheapest to most selective, and only verifies candidates that
// survive every stage.
//
// Usage:
//
//	e := dfc.New()
//	e.AddPattern([]byte("passwd"), true, 1001)
//	if err := e.Compile(); err != nil {
//		return err
//	}
//	n, err := e.Search(payload, func(p []byte, sids []uint32, off int) {
//		fmt.Printf("%q at %d: %v\n", p, off, sids)
//	})
//
// AddPattern and Compile must run on one goroutine. A compiled engine is
// immutable and Search may be called concurrently.
package dfc

import (
	"errors"
	"time"
)

type state uint8

const (
	stateBuilding state = iota
	stateCompiled
	stateFailed
	stateFreed
)

// Engine is a DFC matcher.
type Engine struct {
	cfg   Config
	store *PatternStore
	state state

	bank          *FilterBank
	ct1           [256][]uint32
	ct2, ct4, ct8 *CompactTable

	stats Stats
}

// New returns an empty engine.
func New(opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.normalize()

	return &Engine{
		cfg:   cfg,
		store: newPatternStore(cfg.MinPatternLength, cfg.MaxPatternLength),
	}
}

func (e *Engine) stateErr() error {
	switch e.state {
	case stateCompiled:
		return ErrAlreadyCompiled
	case stateFailed:
		return ErrBuildFailed
	case stateFreed:
		return ErrFreed
	}
	return nil
}

// AddPattern registers pattern under sid. The bytes are copied. An
// ErrAllocation failure leaves the engine unusable.
func (e *Engine) AddPattern(pattern []byte, noCase bool, sid uint32) (AddResult, error) {
	if err := e.stateErr(); err != nil {
		return 0, err
	}
	res, _, err := e.store.Add(pattern, noCase, sid)
	if errors.Is(err, ErrAllocation) {
		e.discard()
		e.state = stateFailed
	}
	return res, err
}

// Compile builds filters and tables. It may be called once.
func (e *Engine) Compile() error {
	if err := e.stateErr(); err != nil {
		return err
	}

	start := time.Now()
	e.build()
	e.state = stateCompiled

	e.stats.Patterns = e.store.Len()
	for _, p := range e.store.Patterns() {
		e.stats.SIDs += len(p.SIDs)
	}
	e.stats.Filters = e.bank.density()
	e.stats.CompileTime = time.Since(start)

	e.cfg.Logger.Debug("dfc compiled",
		"patterns", e.stats.Patterns,
		"sids", e.stats.SIDs,
		"table_entries", e.stats.TableEntries,
		"refined_entries", e.stats.RefinedEntries,
		"duration", e.stats.CompileTime)
	return nil
}

// Search reports every occurrence of every pattern in buf, left to right,
// and returns the number of (occurrence, sid) pairs. fn may be nil.
func (e *Engine) Search(buf []byte, fn MatchFunc) (int, error) {
	switch e.state {
	case stateBuilding:
		return 0, ErrNotCompiled
	case stateFailed:
		return 0, ErrBuildFailed
	case stateFreed:
		return 0, ErrFreed
	}
	if len(buf) == 0 {
		return 0, nil
	}

	v := verifier{patterns: e.store.Patterns(), buf: buf, fn: fn}
	return e.scan(&v), nil
}

// Free releases every pattern, filter and table. The engine is unusable afterwards.
func (e *Engine) Free() {
	e.discard()
	e.store = newPatternStore(e.cfg.MinPatternLength, e.cfg.MaxPatternLength)
	e.state = stateFreed
}

func (e *Engine) discard() {
	e.bank = nil
	e.ct1 = [256][]uint32{}
	e.ct2, e.ct4, e.ct8 = nil, nil, nil
}

// Stats returns build statistics. It is zero before Compile.
func (e *Engine) Stats() Stats {
	return e.stats
}

// PatternCount returns the number of distinct patterns.
func (e *Engine) PatternCount() int {
	return e.store.Len()
}

// Pattern returns the pattern with internal id.
func (e *Engine) Pattern(id uint32) (*Pattern, bool) {
	return e.store.Get(id)
}

// LongestPattern returns the length of the longest added pattern.
func (e *Engine) LongestPattern() int {
	return e.store.Longest()
}
