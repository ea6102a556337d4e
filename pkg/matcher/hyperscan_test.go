//go:build cgo && hyperscan

package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHyperscanEngine_Available(t *testing.T) {
	assert.Contains(t, AvailableEngines(), EngineHyperscan)
}

func TestHyperscanEngine_NoPatterns(t *testing.T) {
	e, err := NewHyperscanEngine()
	require.NoError(t, err)
	defer e.Close()

	err = e.Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no patterns")
}

func TestHyperscanEngine_AgreesWithDFC(t *testing.T) {
	patterns := []struct {
		content string
		noCase  bool
		sid     uint32
	}{
		{"abcdefghij", true, 1},
		{"0123", false, 2},
		{"5678", false, 3},
		{"5678", false, 4},
		{"|", false, 5},
		{"GET /", true, 6},
	}
	buf := []byte("1234567890abcdefghijkl get /index|ABCDEFGHIJ")

	var results [][]occurrence
	for _, name := range []string{EngineDFC, EngineHyperscan} {
		e, err := NewEngine(name, nil)
		require.NoError(t, err)
		for _, p := range patterns {
			require.NoError(t, e.AddPattern([]byte(p.content), p.noCase, p.sid))
		}
		require.NoError(t, e.Compile())
		results = append(results, collect(t, e, buf))
		require.NoError(t, e.Close())
	}

	assert.Equal(t, results[0], results[1])
	assert.Contains(t, results[1], occurrence{10, 1})
	assert.Contains(t, results[1], occurrence{34, 1})
}

func TestHyperscanEngine_CloseTwice(t *testing.T) {
	e, err := NewHyperscanEngine()
	require.NoError(t, err)
	require.NoError(t, e.AddPattern([]byte("abc"), false, 1))
	require.NoError(t, e.Compile())

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
}
