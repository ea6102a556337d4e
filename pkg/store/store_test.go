package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// backends returns one fresh store per implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "scan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func sampleMatch(blobID types.BlobID, structuralID string, start int64) *types.Match {
	return &types.Match{
		BlobID:       blobID,
		StructuralID: structuralID,
		FindingID:    "finding-" + structuralID,
		RuleID:       "sieve.test.1",
		RuleName:     "Test Rule",
		SID:          1001,
		Pattern:      []byte("secret"),
		NoCase:       true,
		Location: types.Location{
			Offset: types.OffsetSpan{Start: start, End: start + 6},
			Source: types.SourceSpan{
				Start: types.SourcePoint{Line: 2, Column: 3},
				End:   types.SourcePoint{Line: 2, Column: 9},
			},
		},
		Snippet: types.Snippet{
			Before:   []byte("a "),
			Matching: []byte("SECRET"),
			After:    []byte(" b"),
		},
	}
}

func TestNew(t *testing.T) {
	s, err := New(Config{Path: MemoryPath})
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)

	s, err = New(Config{Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	defer s.Close()
	_, ok = s.(*SQLiteStore)
	assert.True(t, ok)

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestStore_E2E(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Arrange
			blobID := types.ComputeBlobID([]byte("x SECRET y"))
			require.NoError(t, s.AddBlob(blobID, 10))
			require.NoError(t, s.AddBlob(blobID, 10))

			rule := &types.Rule{ID: "sieve.test.1", Name: "Test Rule", SID: 1001,
				Patterns: []types.Literal{{Content: []byte("secret"), NoCase: true}}}
			rule.StructuralID = rule.ComputeStructuralID()
			require.NoError(t, s.AddRule(rule))

			second := sampleMatch(blobID, "m2", 40)
			first := sampleMatch(blobID, "m1", 2)

			// Act
			require.NoError(t, s.AddMatch(second))
			require.NoError(t, s.AddMatch(first))
			require.NoError(t, s.AddMatch(first))
			require.NoError(t, RecordFinding(s, first))
			require.NoError(t, RecordFinding(s, first))
			require.NoError(t, s.AddProvenance(blobID, types.FileProvenance{FilePath: "/tmp/a.txt"}))
			require.NoError(t, s.AddProvenance(blobID, types.FileProvenance{FilePath: "/tmp/a.txt"}))

			// Assert
			matches, err := s.GetMatches(blobID)
			require.NoError(t, err)
			require.Len(t, matches, 2)
			got := matches[0]
			assert.Equal(t, "m1", got.StructuralID)
			assert.Equal(t, blobID, got.BlobID)
			assert.Equal(t, uint32(1001), got.SID)
			assert.Equal(t, "finding-m1", got.FindingID)
			assert.Equal(t, "secret", string(got.Pattern))
			assert.True(t, got.NoCase)
			assert.Equal(t, first.Location, got.Location)
			assert.Equal(t, "a ", string(got.Snippet.Before))
			assert.Equal(t, "SECRET", string(got.Snippet.Matching))
			assert.Equal(t, " b", string(got.Snippet.After))

			all, err := s.GetAllMatches()
			require.NoError(t, err)
			assert.Len(t, all, 2)

			findings, err := s.GetFindings()
			require.NoError(t, err)
			require.Len(t, findings, 1)
			assert.Equal(t, "finding-m1", findings[0].ID)
			assert.Equal(t, "SECRET", string(findings[0].Content))

			exists, err := s.FindingExists("finding-m1")
			require.NoError(t, err)
			assert.True(t, exists)
			exists, err = s.FindingExists("nonexistent")
			require.NoError(t, err)
			assert.False(t, exists)

			exists, err = s.BlobExists(blobID)
			require.NoError(t, err)
			assert.True(t, exists)
			exists, err = s.BlobExists(types.ComputeBlobID([]byte("other")))
			require.NoError(t, err)
			assert.False(t, exists)

			stats, err := s.Stats()
			require.NoError(t, err)
			assert.Equal(t, Stats{Blobs: 1, Rules: 1, Matches: 2, Findings: 1, Provenance: 1}, stats)
		})
	}
}

func TestStore_ProvenanceRoundTrip(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	provs := []types.Provenance{
		types.FileProvenance{FilePath: "/srv/app.log"},
		types.DecompressedProvenance{FilePath: "/srv/app.log.gz", Codec: "gzip"},
		types.ArchiveProvenance{ArchivePath: "/srv/bundle.zip", MemberPath: "conf/app.ini"},
		types.GitProvenance{RepoPath: "/repo", BlobPath: "config.yml",
			Commit: &types.CommitMetadata{CommitID: "abc123", AuthorName: "dev", AuthorTimestamp: when}},
		types.PcapProvenance{CaptureFile: "c.pcap", Packet: 7, Timestamp: when,
			Transport: "tcp", SrcAddr: "10.0.0.1:1234", DstAddr: "10.0.0.2:80"},
		types.S3Provenance{Bucket: "logs", Key: "app/error.log", ETag: `"abc"`},
		types.AzureProvenance{Account: "acct", Container: "backups", Blob: "db/dump.sql", ETag: "0x8D"},
		types.ExtendedProvenance{Payload: map[string]interface{}{"path": "inline:1"}},
	}

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			blobID := types.ComputeBlobID([]byte(name))
			require.NoError(t, s.AddBlob(blobID, 1))
			for _, p := range provs {
				require.NoError(t, s.AddProvenance(blobID, p))
			}

			got, err := s.GetProvenance(blobID)
			require.NoError(t, err)
			require.Len(t, got, len(provs))
			for i, p := range provs {
				assert.Equal(t, p.Kind(), got[i].Kind())
				assert.Equal(t, p.Path(), got[i].Path())
			}
			assert.Equal(t, "abc123", got[3].(types.GitProvenance).Commit.CommitID)
			assert.True(t, when.Equal(got[4].(types.PcapProvenance).Timestamp))
			assert.Equal(t, `"abc"`, got[5].(types.S3Provenance).ETag)
			assert.Equal(t, "0x8D", got[6].(types.AzureProvenance).ETag)

			none, err := s.GetProvenance(types.ComputeBlobID([]byte("none")))
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

type unknownProvenance struct{}

func (unknownProvenance) Kind() string { return "mystery" }
func (unknownProvenance) Path() string { return "" }

func TestStore_UnknownProvenance(t *testing.T) {
	for name, s := range backends(t) {
		err := s.AddProvenance(types.BlobID{}, unknownProvenance{})
		assert.Error(t, err, name)
	}
}

func TestStore_GetRules(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			late := &types.Rule{ID: "b.rule", Name: "Later", SID: 20, Patterns: []types.Literal{{Content: []byte{0x00, 0xff}}}}
			early := &types.Rule{ID: "a.rule", Name: "Earlier", SID: 10, Patterns: []types.Literal{{Content: []byte("tok"), NoCase: true}}}
			for _, r := range []*types.Rule{late, early} {
				r.StructuralID = r.ComputeStructuralID()
				require.NoError(t, s.AddRule(r))
			}
			// Re-adding replaces rather than duplicates.
			require.NoError(t, s.AddRule(early))

			rules, err := s.GetRules()
			require.NoError(t, err)
			require.Len(t, rules, 2)
			assert.Equal(t, "a.rule", rules[0].ID)
			assert.Equal(t, uint32(10), rules[0].SID)
			assert.Equal(t, early.Patterns, rules[0].Patterns)
			assert.Equal(t, early.StructuralID, rules[0].StructuralID)
			assert.Equal(t, []byte{0x00, 0xff}, rules[1].Patterns[0].Content)
		})
	}
}
