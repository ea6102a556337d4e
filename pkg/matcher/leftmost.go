package matcher

import (
	"github.com/coregx/ahocorasick"
	"github.com/praetorian-inc/sieve/pkg/dfc"
)

// LeftmostEngine steps an Aho-Corasick automaton over upper-cased text
// from one match start to the next and verifies the patterns sharing each
// candidate position's first byte.
type LeftmostEngine struct {
	patternSet
	auto    *ahocorasick.Automaton
	buckets [256][]*dfc.Pattern // by first folded byte, insertion order
}

// NewLeftmostEngine returns an empty engine.
func NewLeftmostEngine() *LeftmostEngine {
	return &LeftmostEngine{patternSet: newPatternSet()}
}

// Compile implements Engine.
func (e *LeftmostEngine) Compile() error {
	if e.compiled {
		return errCompiled
	}
	builder := ahocorasick.NewBuilder()
	seen := make(map[string]bool, len(e.patterns))
	for _, p := range e.patterns {
		e.buckets[p.Folded[0]] = append(e.buckets[p.Folded[0]], p)
		if !seen[string(p.Folded)] {
			seen[string(p.Folded)] = true
			builder.AddPattern(p.Folded)
		}
	}
	if len(e.patterns) > 0 {
		auto, err := builder.Build()
		if err != nil {
			return err
		}
		e.auto = auto
	}
	e.compiled = true
	return nil
}

// Search implements Engine. Occurrences are reported by start offset,
// then by pattern insertion order.
func (e *LeftmostEngine) Search(buf []byte, fn dfc.MatchFunc) (int, error) {
	if !e.compiled {
		return 0, errNotCompiled
	}
	if len(buf) == 0 || e.auto == nil {
		return 0, nil
	}

	folded := dfc.Fold(buf)
	total := 0
	for at := 0; at < len(folded); {
		m := e.auto.Find(folded, at)
		if m == nil {
			break
		}
		// No occurrence starting at or after at ends before m.End, so
		// starts earlier than m.End-longest are impossible.
		last := max(m.Start, at)
		for s := max(at, m.End-e.longest); s <= last; s++ {
			for _, p := range e.buckets[folded[s]] {
				if !p.MatchAt(buf, s) {
					continue
				}
				if fn != nil {
					fn(p.Content, p.SIDs, s)
				}
				total += len(p.SIDs)
			}
		}
		at = last + 1
	}
	return total, nil
}

// Close implements Engine.
func (e *LeftmostEngine) Close() error {
	e.auto = nil
	e.patterns = nil
	e.buckets = [256][]*dfc.Pattern{}
	return nil
}
