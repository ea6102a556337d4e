package matcher

import (
	"bytes"
	"strings"
	"testing"

	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRule(id string, sid uint32, noCase bool, patterns ...string) *types.Rule {
	r := &types.Rule{ID: id, Name: id, SID: sid}
	for _, p := range patterns {
		r.Patterns = append(r.Patterns, types.Literal{Content: []byte(p), NoCase: noCase})
	}
	r.StructuralID = r.ComputeStructuralID()
	return r
}

func testRules() []*types.Rule {
	return []*types.Rule{
		testRule("test.password", 100, true, "password="),
		testRule("test.aws", 101, false, "AKIA"),
		testRule("test.shell", 102, false, "/bin/sh", "cmd.exe"),
	}
}

func TestNewLiteral_NoRules(t *testing.T) {
	_, err := NewLiteral(Config{})
	assert.Error(t, err)
}

func TestNewLiteral_UnknownEngine(t *testing.T) {
	_, err := NewLiteral(Config{Rules: testRules(), Engine: "nope"})
	assert.ErrorIs(t, err, ErrUnknownEngine)
}

func TestLiteralMatcher_Match(t *testing.T) {
	for _, engine := range []string{EngineDFC, EngineAhoCorasick} {
		t.Run(engine, func(t *testing.T) {
			m, err := NewLiteral(Config{Rules: testRules(), Engine: engine})
			require.NoError(t, err)
			defer m.Close()

			content := []byte("user=admin\nPASSWORD=hunter2\nkey AKIA1234\nexec /bin/sh -c id\n")
			matches, err := m.Match(content)
			require.NoError(t, err)
			require.Len(t, matches, 3)

			assert.Equal(t, "test.password", matches[0].RuleID)
			assert.Equal(t, uint32(100), matches[0].SID)
			assert.Equal(t, "PASSWORD=", string(matches[0].Snippet.Matching))
			assert.Equal(t, []byte("password="), matches[0].Pattern)
			assert.True(t, matches[0].NoCase)
			assert.Equal(t, types.SourcePoint{Line: 2, Column: 1}, matches[0].Location.Source.Start)

			assert.Equal(t, "test.aws", matches[1].RuleID)
			assert.Equal(t, int64(strings.Index(string(content), "AKIA")), matches[1].Location.Offset.Start)
			assert.Equal(t, 3, matches[1].Location.Source.Start.Line)

			assert.Equal(t, "test.shell", matches[2].RuleID)
			assert.Equal(t, "/bin/sh", string(matches[2].Pattern))

			for _, mt := range matches {
				assert.Equal(t, types.ComputeBlobID(content), mt.BlobID)
				assert.Len(t, mt.StructuralID, 40)
				assert.Len(t, mt.FindingID, 40)
			}
		})
	}
}

func TestLiteralMatcher_CaseSensitiveRule(t *testing.T) {
	m, err := NewLiteral(Config{Rules: testRules()})
	require.NoError(t, err)
	defer m.Close()

	matches, err := m.Match([]byte("akia lowercase does not count"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLiteralMatcher_SharedPattern(t *testing.T) {
	rules := []*types.Rule{
		testRule("a", 1, false, "secret"),
		testRule("b", 2, false, "secret"),
	}
	m, err := NewLiteral(Config{Rules: rules})
	require.NoError(t, err)
	defer m.Close()

	matches, err := m.Match([]byte("my secret"))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].RuleID)
	assert.Equal(t, "b", matches[1].RuleID)
	assert.Equal(t, matches[0].Location, matches[1].Location)
}

func TestLiteralMatcher_ContextLines(t *testing.T) {
	m, err := NewLiteral(Config{Rules: testRules(), ContextLines: 1})
	require.NoError(t, err)
	defer m.Close()

	matches, err := m.Match([]byte("one\ntwo AKIA three\nfour\nfive"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "one\ntwo ", string(matches[0].Snippet.Before))
	assert.Equal(t, " three\n", string(matches[0].Snippet.After))
}

func TestLiteralMatcher_DedupeByContent(t *testing.T) {
	content := []byte("AKIA AKIA AKIA")

	byLocation, err := NewLiteral(Config{Rules: testRules()})
	require.NoError(t, err)
	defer byLocation.Close()
	matches, err := byLocation.Match(content)
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	byContent, err := NewLiteral(Config{Rules: testRules(), Dedupe: DedupeByContent})
	require.NoError(t, err)
	defer byContent.Close()
	matches, err = byContent.Match(content)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestLiteralMatcher_MaxMatchesPerBlob(t *testing.T) {
	m, err := NewLiteral(Config{Rules: testRules(), MaxMatchesPerBlob: 2})
	require.NoError(t, err)
	defer m.Close()

	res, err := m.MatchResult([]byte("AKIA AKIA AKIA AKIA"), types.BlobID{})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)
	assert.True(t, res.Summary.Truncated)

	stat := res.RuleStats["test.aws"]
	assert.Equal(t, RuleTruncated, stat.Status)
	assert.Equal(t, 4, stat.Hits)
	assert.Equal(t, 2, stat.Matches)
}

func TestLiteralMatcher_MatchResultSummary(t *testing.T) {
	m, err := NewLiteral(Config{Rules: testRules()})
	require.NoError(t, err)
	defer m.Close()

	res, err := m.MatchResult([]byte("password= and cmd.exe"), types.BlobID{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Summary.TotalRules)
	assert.Equal(t, 2, res.Summary.MatchedRules)
	assert.Equal(t, 2, res.Summary.TotalMatches)
	assert.Equal(t, 1, res.Summary.Chunks)
	assert.Equal(t, RuleCompleted, res.RuleStats["test.shell"].Status)
}

// A pattern straddling a chunk boundary is reported once.
func TestLiteralMatcher_AcrossChunks(t *testing.T) {
	m, err := NewLiteral(Config{
		Rules: []*types.Rule{testRule("long", 1, false, "needle-in-haystack")},
		Chunk: ChunkConfig{MaxChunkSize: 64},
	})
	require.NoError(t, err)
	defer m.Close()

	var content []byte
	var want []int64
	for i := 0; i < 20; i++ {
		content = append(content, bytes.Repeat([]byte{'.'}, 13+i)...)
		want = append(want, int64(len(content)))
		content = append(content, "needle-in-haystack"...)
	}

	res, err := m.MatchResult(content, types.BlobID{})
	require.NoError(t, err)
	assert.Greater(t, res.Summary.Chunks, 1)

	var got []int64
	for _, mt := range res.Matches {
		got = append(got, mt.Location.Offset.Start)
	}
	assert.Equal(t, want, got)
}

func TestNew_ReturnsLiteral(t *testing.T) {
	m, err := New(Config{Rules: testRules()})
	require.NoError(t, err)
	defer m.Close()

	_, ok := m.(*LiteralMatcher)
	assert.True(t, ok)
}
