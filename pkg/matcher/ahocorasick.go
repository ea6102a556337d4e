package matcher

import (
	"bytes"
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"github.com/praetorian-inc/sieve/pkg/dfc"
)

var (
	errCompiled    = errors.New("engine already compiled")
	errNotCompiled = errors.New("engine not compiled")
)

// AhoCorasickEngine finds which patterns occur with an Aho-Corasick
// automaton over upper-cased text, then locates each occurrence.
type AhoCorasickEngine struct {
	patternSet
	mu     sync.Mutex // the automaton is not safe for concurrent Match
	ac     *ahocorasick.Matcher
	dict   []string         // unique folded patterns
	byDict [][]*dfc.Pattern // patterns per dict entry
}

// NewAhoCorasickEngine returns an empty automaton engine.
func NewAhoCorasickEngine() *AhoCorasickEngine {
	return &AhoCorasickEngine{patternSet: newPatternSet()}
}

// patternSet is the pattern bookkeeping shared by the automaton engines:
// patterns in insertion order, merged by (content, noCase).
type patternSet struct {
	patterns []*dfc.Pattern
	index    map[string]*dfc.Pattern
	longest  int
	compiled bool
}

func newPatternSet() patternSet {
	return patternSet{index: make(map[string]*dfc.Pattern)}
}

// AddPattern implements Engine.
func (e *patternSet) AddPattern(pattern []byte, noCase bool, sid uint32) error {
	if e.compiled {
		return errCompiled
	}
	if len(pattern) == 0 || len(pattern) > dfc.DefaultMaxPatternLength {
		return &dfc.PatternLengthError{Length: len(pattern), Min: 1, Max: dfc.DefaultMaxPatternLength}
	}

	key := string(pattern)
	if noCase {
		key = "i:" + key
	} else {
		key = "s:" + key
	}
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

// Compile implements Engine.
func (e *AhoCorasickEngine) Compile() error {
	if e.compiled {
		return errCompiled
	}
	slot := make(map[string]int)
	for _, p := range e.patterns {
		folded := string(p.Folded)
		i, ok := slot[folded]
		if !ok {
			i = len(e.dict)
			slot[folded] = i
			e.dict = append(e.dict, folded)
			e.byDict = append(e.byDict, nil)
		}
		e.byDict[i] = append(e.byDict[i], p)
	}
	e.ac = ahocorasick.NewStringMatcher(e.dict)
	e.compiled = true
	return nil
}

type acHit struct {
	offset int
	p      *dfc.Pattern
}

// Search implements Engine. Occurrences are reported by start offset,
// then by pattern insertion order.
func (e *AhoCorasickEngine) Search(buf []byte, fn dfc.MatchFunc) (int, error) {
	if !e.compiled {
		return 0, errNotCompiled
	}
	if len(buf) == 0 || len(e.dict) == 0 {
		return 0, nil
	}

	folded := dfc.Fold(buf)
	e.mu.Lock()
	found := e.ac.Match(folded)
	e.mu.Unlock()

	var hits []acHit
	for _, i := range found {
		needle := []byte(e.dict[i])
		for off := 0; ; {
			j := bytes.Index(folded[off:], needle)
			if j < 0 {
				break
			}
			start := off + j
			for _, p := range e.byDict[i] {
				if p.MatchAt(buf, start) {
					hits = append(hits, acHit{offset: start, p: p})
				}
			}
			off = start + 1
		}
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].offset != hits[b].offset {
			return hits[a].offset < hits[b].offset
		}
		return hits[a].p.ID < hits[b].p.ID
	})

	total := 0
	for _, h := range hits {
		if fn != nil {
			fn(h.p.Content, h.p.SIDs, h.offset)
		}
		total += len(h.p.SIDs)
	}
	return total, nil
}

// LongestPattern implements Engine.
func (e *patternSet) LongestPattern() int {
	return e.longest
}

// Close implements Engine.
func (e *AhoCorasickEngine) Close() error {
	e.ac = nil
	e.patterns = nil
	e.dict = nil
	e.byDict = nil
	return nil
}
