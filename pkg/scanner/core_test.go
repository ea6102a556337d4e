package scanner

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/praetorian-inc/sieve/pkg/matcher"
	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const testRulesYAML = `
rules:
  - id: test.token
    name: Test Token
    sid: 1
    patterns:
      - content: "tok_"
  - id: test.password
    name: Password Assignment
    sid: 2
    patterns:
      - content: "password="
        nocase: true
`

func newTestCore(t *testing.T, opts ...Option) *Core {
	t.Helper()
	rules, err := ParseRules(testRulesYAML)
	require.NoError(t, err)
	core, err := NewCore(rules, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { core.Close() })
	return core
}

func TestParseRules_Builtin(t *testing.T) {
	rules, err := ParseRules("builtin")
	require.NoError(t, err)
	assert.NotEmpty(t, rules)

	again, err := GetBuiltinRules()
	require.NoError(t, err)
	assert.Equal(t, len(rules), len(again))
}

func TestNewCore_BuiltinRules(t *testing.T) {
	core, err := NewCore(nil)
	require.NoError(t, err)
	defer core.Close()

	assert.NotEmpty(t, core.Rules())
}

func TestNewCore_UnknownEngine(t *testing.T) {
	rules, err := ParseRules(testRulesYAML)
	require.NoError(t, err)

	_, err = NewCore(rules, WithEngine("nope"))
	assert.ErrorIs(t, err, matcher.ErrUnknownEngine)
}

func TestCore_Scan(t *testing.T) {
	core := newTestCore(t)

	result, err := core.Scan(context.Background(), "PASSWORD=x\nid tok_123\n", "inline:1")
	require.NoError(t, err)

	assert.Equal(t, "inline:1", result.Source)
	require.Len(t, result.Matches, 2)
	assert.Equal(t, "test.password", result.Matches[0].RuleID)
	assert.Equal(t, "test.token", result.Matches[1].RuleID)

	stored, err := core.Store().GetMatches(result.BlobID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	findings, err := core.Store().GetFindings()
	require.NoError(t, err)
	assert.Len(t, findings, 2)

	provs, err := core.Store().GetProvenance(result.BlobID)
	require.NoError(t, err)
	require.Len(t, provs, 1)
	assert.Equal(t, "inline:1", provs[0].Path())
}

func TestCore_ScanBlobIncremental(t *testing.T) {
	core := newTestCore(t, WithIncremental(true))
	ctx := context.Background()
	content := []byte("tok_abc")

	first, err := core.ScanBlob(ctx, content, types.FileProvenance{FilePath: "a.txt"})
	require.NoError(t, err)
	assert.False(t, first.Skipped)
	assert.Len(t, first.Matches, 1)

	second, err := core.ScanBlob(ctx, content, types.FileProvenance{FilePath: "b.txt"})
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Empty(t, second.Matches)

	provs, err := core.Store().GetProvenance(first.BlobID)
	require.NoError(t, err)
	assert.Len(t, provs, 2)

	stats, err := core.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.BlobsScanned)
	assert.Equal(t, int64(1), stats.BlobsSkipped)
}

func TestCore_ScanReaderMatchesScanBlob(t *testing.T) {
	core := newTestCore(t, WithChunkConfig(matcher.ChunkConfig{MaxChunkSize: 16}))
	content := []byte(strings.Repeat("xx tok_ yy password= ", 20))

	streamed, err := core.ScanReader(context.Background(), bytes.NewReader(content), int64(len(content)), nil)
	require.NoError(t, err)

	direct := newTestCore(t)
	whole, err := direct.ScanBlob(context.Background(), content, nil)
	require.NoError(t, err)

	assert.Equal(t, whole.BlobID, streamed.BlobID)
	require.Len(t, streamed.Matches, len(whole.Matches))
	for i := range whole.Matches {
		assert.Equal(t, whole.Matches[i].StructuralID, streamed.Matches[i].StructuralID)
		assert.Equal(t, whole.Matches[i].Location.Offset, streamed.Matches[i].Location.Offset)
	}
}

func TestCore_ScanReaderSizeMismatch(t *testing.T) {
	core := newTestCore(t)
	_, err := core.ScanReader(context.Background(), strings.NewReader("tok_"), 10, nil)
	assert.Error(t, err)
}

func TestCore_ScanBatch(t *testing.T) {
	core := newTestCore(t, WithConcurrency(2))

	items := []ContentItem{
		{Source: "a", Content: "tok_1 tok_2"},
		{Source: "b", Content: "nothing here"},
		{Source: "c", Content: "Password=hunter2"},
	}
	result, err := core.ScanBatch(context.Background(), items)
	require.NoError(t, err)

	require.Len(t, result.Results, 3)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, "a", result.Results[0].Source)
	assert.Len(t, result.Results[0].Matches, 2)
	assert.Empty(t, result.Results[1].Matches)
	assert.Len(t, result.Results[2].Matches, 1)
}

func TestCore_ScanBatchCancelled(t *testing.T) {
	core := newTestCore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := core.ScanBatch(ctx, []ContentItem{{Source: "a", Content: "tok_"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func sumInt64(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestCore_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	core := newTestCore(t, WithMeter(provider.Meter("test")))

	_, err := core.Scan(context.Background(), "tok_ tok_ password=", "m")
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(1), sumInt64(t, rm, "sieve_scan_blobs_total"))
	assert.Equal(t, int64(19), sumInt64(t, rm, "sieve_scan_bytes_total"))
	assert.Equal(t, int64(3), sumInt64(t, rm, "sieve_scan_matches_total"))
}

func TestCore_Stats(t *testing.T) {
	core := newTestCore(t, WithEngine(matcher.EngineAhoCorasick))

	_, err := core.Scan(context.Background(), "tok_", "s")
	require.NoError(t, err)

	stats, err := core.Stats()
	require.NoError(t, err)
	assert.Equal(t, matcher.EngineAhoCorasick, stats.Engine)
	assert.Equal(t, 2, stats.Rules)
	assert.Equal(t, 2, stats.Patterns)
	assert.Equal(t, int64(4), stats.BytesScanned)
	assert.Equal(t, int64(1), stats.Matches)
	assert.Equal(t, 2, stats.Store.Rules)
	assert.Equal(t, 1, stats.Store.Findings)
}
