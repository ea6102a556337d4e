package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineIndex_Point(t *testing.T) {
	content := []byte("line1\nline2\n\nline4")
	idx := NewLineIndex(content)

	tests := []struct {
		offset int
		want   SourcePoint
	}{
		{0, SourcePoint{1, 1}},
		{4, SourcePoint{1, 5}},
		{5, SourcePoint{1, 6}},
		{6, SourcePoint{2, 1}},
		{12, SourcePoint{3, 1}},
		{13, SourcePoint{4, 1}},
		{18, SourcePoint{4, 6}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, idx.Point(tt.offset), "offset %d", tt.offset)
	}

	assert.Equal(t, SourceSpan{Start: SourcePoint{2, 1}, End: SourcePoint{2, 6}}, idx.Span(6, 11))
}

func TestComputeLineColumn(t *testing.T) {
	content := []byte("ab\ncd")

	line, col := ComputeLineColumn(content, 0)
	assert.Equal(t, 1, line)
	assert.Equal(t, 1, col)

	line, col = ComputeLineColumn(content, 4)
	assert.Equal(t, 2, line)
	assert.Equal(t, 2, col)

	line, col = ComputeLineColumn(content, 100)
	assert.Equal(t, 2, line)
	assert.Equal(t, 3, col)
}

func TestOffsetSpan_Len(t *testing.T) {
	assert.Equal(t, int64(5), OffsetSpan{Start: 3, End: 8}.Len())
}

func TestSnippet_Len(t *testing.T) {
	s := Snippet{Before: []byte("ab"), Matching: []byte("cd"), After: []byte("e")}
	assert.Equal(t, 5, s.Len())
}
