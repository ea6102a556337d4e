package dfc

import (
	"bytes"
	"fmt"
	"math"
	"slices"
)

// AddResult tells whether AddPattern created a pattern or extended one.
type AddResult int

const (
	// Created means a new pattern was stored.
	Created AddResult = iota

	// SIDAdded means the pattern already existed and the sid was merged in.
	SIDAdded
)

func (r AddResult) String() string {
	switch r {
	case Created:
		return "created"
	case SIDAdded:
		return "sid_added"
	default:
		return "unknown"
	}
}

// Pattern is a deduplicated literal.
type Pattern struct {
	// ID is dense and assigned in insertion order.
	ID uint32

	// Content holds the bytes as added.
	Content []byte

	// Folded holds Content upper-cased.
	Folded []byte

	NoCase bool

	// SIDs are unique and kept in insertion order.
	SIDs []uint32
}

// Len returns the pattern length in bytes.
func (p *Pattern) Len() int {
	return len(p.Content)
}

// MatchAt reports whether the pattern occurs in buf starting at start.
// Out of range positions never match.
func (p *Pattern) MatchAt(buf []byte, start int) bool {
	n := len(p.Content)
	if start < 0 || start+n > len(buf) {
		return false
	}
	window := buf[start : start+n]
	if !p.NoCase {
		return bytes.Equal(window, p.Content)
	}
	for i, c := range window {
		if upperTable[c] != p.Folded[i] {
			return false
		}
	}
	return true
}

type patternKey struct {
	content string
	noCase  bool
}

// PatternStore owns all patterns added to an engine.
type PatternStore struct {
	patterns []*Pattern
	index    map[patternKey]*Pattern
	minLen   int
	maxLen   int
	longest  int

	// capacity bounds the dense id space.
	capacity uint64
}

func newPatternStore(minLen, maxLen int) *PatternStore {
	return &PatternStore{
		index:  make(map[patternKey]*Pattern),
		minLen:   minLen,
		maxLen:   maxLen,
		capacity: math.MaxUint32 + 1,
	}
}

// Add stores content under sid, deduplicating on (content, noCase).
func (s *PatternStore) Add(content []byte, noCase bool, sid uint32) (AddResult, *Pattern, error) {
	n := len(content)
	if n == 0 || n < s.minLen || n > s.maxLen {
		return 0, nil, &PatternLengthError{Length: n, Min: s.minLen, Max: s.maxLen}
	}

	key := patternKey{content: string(content), noCase: noCase}
	if p, ok := s.index[key]; ok {
		if !slices.Contains(p.SIDs, sid) {
			p.SIDs = append(p.SIDs, sid)
		}
		return SIDAdded, p, nil
	}

	if uint64(len(s.patterns)) >= s.capacity {
		return 0, nil, fmt.Errorf("%w: pattern id space exhausted at %d patterns", ErrAllocation, len(s.patterns))
	}
	p := &Pattern{
		ID:      uint32(len(s.patterns)),
		Content: bytes.Clone(content),
		Folded:  Fold(content),
		NoCase:  noCase,
		SIDs:    []uint32{sid},
	}
	s.patterns = append(s.patterns, p)
	s.index[key] = p
	if n > s.longest {
		s.longest = n
	}
	return Created, p, nil
}

// Len returns the number of distinct patterns.
func (s *PatternStore) Len() int {
	return len(s.patterns)
}

// Get returns the pattern with the given internal id.
func (s *PatternStore) Get(id uint32) (*Pattern, bool) {
	if int(id) >= len(s.patterns) {
		return nil, false
	}
	return s.patterns[id], true
}

// Patterns returns the stored patterns ordered by id. The slice must not be modified.
func (s *PatternStore) Patterns() []*Pattern {
	return s.patterns
}

// Longest returns the length of the longest stored pattern.
func (s *PatternStore) Longest() int {
	return s.longest
}

func appendUnique(ids []uint32, id uint32) []uint32 {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
