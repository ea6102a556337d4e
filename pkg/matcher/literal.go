package matcher

import (
	"bytes"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/praetorian-inc/sieve/pkg/types"
	"golang.org/x/sync/errgroup"
)

// LiteralMatcher implements Matcher over an Engine. Every pattern of the
// rule at index i is added to the engine with sid i.
type LiteralMatcher struct {
	cfg    Config
	engine Engine
	rules  []*types.Rule
	noCase []map[string]bool // per rule: pattern content -> nocase
	logger *slog.Logger
}

// rawHit is one engine callback resolved to a rule.
type rawHit struct {
	rule    int
	start   int
	end     int
	pattern []byte
}

// NewLiteral compiles cfg.Rules into the configured engine.
func NewLiteral(cfg Config) (*LiteralMatcher, error) {
	if len(cfg.Rules) == 0 {
		return nil, fmt.Errorf("no rules provided")
	}
	if cfg.Chunk.MaxChunkSize <= 0 {
		cfg.Chunk = DefaultChunkConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	engine, err := NewEngine(cfg.Engine, logger)
	if err != nil {
		return nil, err
	}

	m := &LiteralMatcher{
		cfg:    cfg,
		engine: engine,
		rules:  cfg.Rules,
		noCase: make([]map[string]bool, len(cfg.Rules)),
		logger: logger,
	}
	for i, r := range cfg.Rules {
		m.noCase[i] = make(map[string]bool, len(r.Patterns))
		for _, p := range r.Patterns {
			if err := engine.AddPattern(p.Content, p.NoCase, uint32(i)); err != nil {
				engine.Close()
				return nil, fmt.Errorf("rule %s: %w", r.ID, err)
			}
			m.noCase[i][string(p.Content)] = m.noCase[i][string(p.Content)] || p.NoCase
		}
	}
	if err := engine.Compile(); err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to compile %s engine: %w", cfg.Engine, err)
	}

	logger.Debug("matcher ready", "engine", engineName(cfg.Engine), "rules", len(cfg.Rules))
	return m, nil
}

func engineName(name string) string {
	if name == "" {
		return EngineDFC
	}
	return name
}

// Engine returns the underlying search engine.
func (m *LiteralMatcher) Engine() Engine {
	return m.engine
}

// Rules returns the loaded rules.
func (m *LiteralMatcher) Rules() []*types.Rule {
	return m.rules
}

// Match scans content against all loaded rules.
func (m *LiteralMatcher) Match(content []byte) ([]*types.Match, error) {
	return m.MatchWithBlobID(content, types.ComputeBlobID(content))
}

// MatchWithBlobID scans content with a known BlobID.
func (m *LiteralMatcher) MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error) {
	res, err := m.MatchResult(content, blobID)
	if err != nil {
		return nil, err
	}
	return res.Matches, nil
}

// MatchResult scans content and returns matches with per-rule statistics.
func (m *LiteralMatcher) MatchResult(content []byte, blobID types.BlobID) (*MatchResult, error) {
	start := time.Now()
	chunks := ChunkContent(content, m.cfg.Chunk, m.engine.LongestPattern()-1)

	hits, err := m.scanChunks(chunks)
	if err != nil {
		return nil, err
	}
	sortHits(hits)

	res := &MatchResult{RuleStats: make(map[string]RuleStat)}
	var lines *types.LineIndex
	if len(hits) > 0 {
		lines = types.NewLineIndex(content)
	}
	dedup := NewDeduplicatorWithMode(m.cfg.Dedupe)

	for _, h := range hits {
		r := m.rules[h.rule]
		stat := res.RuleStats[r.ID]
		stat.RuleID, stat.SID = r.ID, r.SID
		stat.Hits++

		if m.cfg.MaxMatchesPerBlob > 0 && len(res.Matches) >= m.cfg.MaxMatchesPerBlob {
			res.Summary.Truncated = true
			stat.Status = RuleTruncated
			res.RuleStats[r.ID] = stat
			continue
		}

		match := m.newMatch(content, lines, blobID, h, 0)
		if dedup.CheckAndAdd(match) {
			res.Matches = append(res.Matches, match)
			stat.Matches++
		}
		res.RuleStats[r.ID] = stat
	}

	res.Summary.TotalRules = len(m.rules)
	res.Summary.MatchedRules = len(res.RuleStats)
	res.Summary.TotalMatches = len(res.Matches)
	res.Summary.Chunks = len(chunks)
	res.Summary.Duration = time.Since(start)
	return res, nil
}

// Close releases the engine.
func (m *LiteralMatcher) Close() error {
	return m.engine.Close()
}

// scanChunks searches chunks in parallel and returns hits with absolute offsets.
func (m *LiteralMatcher) scanChunks(chunks []Chunk) ([]rawHit, error) {
	if len(chunks) == 1 {
		return m.scanChunk(chunks[0])
	}

	results := make([][]rawHit, len(chunks))
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, c := range chunks {
		g.Go(func() error {
			hits, err := m.scanChunk(c)
			results[i] = hits
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []rawHit
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func (m *LiteralMatcher) scanChunk(c Chunk) ([]rawHit, error) {
	var hits []rawHit
	_, err := m.engine.Search(c.Content, func(p []byte, sids []uint32, off int) {
		start := c.StartOffset + off
		for _, sid := range sids {
			hits = append(hits, rawHit{rule: int(sid), start: start, end: start + len(p), pattern: p})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("search chunk %d: %w", c.Index, err)
	}
	return hits, nil
}

// newMatch builds a match for h. content holds h's bytes at h.start and
// base is the absolute offset of content[0]. lines may be nil.
func (m *LiteralMatcher) newMatch(content []byte, lines *types.LineIndex, blobID types.BlobID, h rawHit, base int64) *types.Match {
	r := m.rules[h.rule]
	matched := bytes.Clone(content[h.start:h.end])
	before, after := ExtractContext(content, h.start, h.end, m.cfg.ContextLines)

	match := &types.Match{
		BlobID:   blobID,
		RuleID:   r.ID,
		RuleName: r.Name,
		SID:      r.SID,
		Pattern:  h.pattern,
		NoCase:   m.noCase[h.rule][string(h.pattern)],
		Location: types.Location{
			Offset: types.OffsetSpan{
				Start: base + int64(h.start),
				End:   base + int64(h.end),
			},
		},
		Snippet: types.Snippet{
			Before:   before,
			Matching: matched,
			After:    after,
		},
	}
	if lines != nil {
		match.Location.Source = lines.Span(h.start, h.end)
	}
	match.StructuralID = match.ComputeStructuralID(r.StructuralID)
	match.FindingID = types.ComputeFindingID(r.StructuralID, matched, match.NoCase)
	return match
}

func sortHits(hits []rawHit) {
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].start != hits[b].start {
			return hits[a].start < hits[b].start
		}
		if hits[a].end != hits[b].end {
			return hits[a].end < hits[b].end
		}
		return hits[a].rule < hits[b].rule
	})
}
