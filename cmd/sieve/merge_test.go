package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/praetorian-inc/sieve/pkg/store"
	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMergeCmd creates a fresh merge command for testing
func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:  "merge <source1.db> <source2.db> [source3.db...]",
		Args: cobra.MinimumNArgs(2),
		RunE: runMerge,
	}
	cmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "Output database path")
	return cmd
}

// scanToDB scans a directory holding one file and stores results in a new database.
func scanToDB(t *testing.T, rulesFile, name, content string) string {
	t.Helper()
	target := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, name), []byte(content), 0644))

	resetScanFlags(t, rulesFile)
	scanOutputPath = filepath.Join(t.TempDir(), "scan.db")
	cmd, _, _ := newTestCmd()
	require.NoError(t, runScan(cmd, []string{target}))
	return scanOutputPath
}

func TestMergeCmd_RequiresMinimumArgs(t *testing.T) {
	for _, args := range [][]string{{}, {"source1.db"}} {
		cmd := newMergeCmd()
		cmd.SetArgs(args)
		err := cmd.Execute()
		assert.ErrorContains(t, err, "requires at least 2 arg")
	}
}

func TestMergeCmd_MergesScanDatabases(t *testing.T) {
	rulesFile := writeRules(t, t.TempDir())
	db1 := scanToDB(t, rulesFile, "a.txt", "first test line")
	db2 := scanToDB(t, rulesFile, "b.txt", "second test line")

	destPath := filepath.Join(t.TempDir(), "merged.db")
	var buf bytes.Buffer
	cmd := newMergeCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{db1, db2, "--output", destPath})
	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Sources processed: 2")
	assert.Contains(t, output, "Blobs merged: 2")
	// Both scans stored the same rule and the same "test" finding.
	assert.Contains(t, output, "Rules merged: 1")
	assert.Contains(t, output, "Matches merged: 2")
	assert.Contains(t, output, "Findings merged: 1")
	assert.Contains(t, output, "Provenance merged: 2")

	dest, err := store.NewSQLite(destPath)
	require.NoError(t, err)
	defer dest.Close()

	rules, err := dest.GetRules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "test.1", rules[0].ID)
	assert.Equal(t, uint32(9001), rules[0].SID)

	matches, err := dest.GetAllMatches()
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, uint32(9001), m.SID)
		provs, err := dest.GetProvenance(m.BlobID)
		require.NoError(t, err)
		require.Len(t, provs, 1)
		assert.Equal(t, "file", provs[0].Kind())
	}
}

func TestMergeCmd_SameScanTwice(t *testing.T) {
	rulesFile := writeRules(t, t.TempDir())
	db := scanToDB(t, rulesFile, "a.txt", "test")

	// A copy of the same scan contributes nothing new.
	data, err := os.ReadFile(db)
	require.NoError(t, err)
	dup := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, os.WriteFile(dup, data, 0644))

	destPath := filepath.Join(t.TempDir(), "merged.db")
	var buf bytes.Buffer
	cmd := newMergeCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{db, dup, "--output", destPath})
	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Blobs merged: 1")
	assert.Contains(t, output, "Rules merged: 1")
	assert.Contains(t, output, "Matches merged: 1")
	assert.Contains(t, output, "Findings merged: 1")
	assert.Contains(t, output, "Provenance merged: 1")
}

func TestMergeCmd_HandBuiltSources(t *testing.T) {
	tmpDir := t.TempDir()
	rule := &types.Rule{ID: "np.http.1", Name: "HTTP GET", SID: 1001,
		Patterns: []types.Literal{{Content: []byte("GET /"), NoCase: true}}}
	rule.StructuralID = rule.ComputeStructuralID()

	var paths []string
	for i, content := range []string{"GET /index", "get /admin"} {
		p := filepath.Join(tmpDir, filepath.Base(t.Name())+string(rune('a'+i))+".db")
		s, err := store.NewSQLite(p)
		require.NoError(t, err)
		blobID := types.ComputeBlobID([]byte(content))
		require.NoError(t, s.AddBlob(blobID, int64(len(content))))
		require.NoError(t, s.AddRule(rule))
		require.NoError(t, s.AddProvenance(blobID, types.PcapProvenance{CaptureFile: "c.pcap", Packet: i + 1, Transport: "tcp"}))
		require.NoError(t, s.Close())
		paths = append(paths, p)
	}

	destPath := filepath.Join(tmpDir, "merged.db")
	var buf bytes.Buffer
	cmd := newMergeCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(append(paths, "--output", destPath))
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Rules merged: 1")
	assert.Contains(t, buf.String(), "Provenance merged: 2")
}

func TestMergeCmd_FailsWithInvalidSource(t *testing.T) {
	destPath := filepath.Join(t.TempDir(), "merged.db")
	cmd := newMergeCmd()
	cmd.SetArgs([]string{"/nonexistent/source1.db", "/nonexistent/source2.db", "--output", destPath})

	err := cmd.Execute()
	assert.ErrorContains(t, err, "merge failed")
}
