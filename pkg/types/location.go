package types

import "sort"

// OffsetSpan is byte range [Start, End) - half-open interval.
type OffsetSpan struct {
	Start int64
	End   int64
}

// Len returns End - Start.
func (s OffsetSpan) Len() int64 {
	return s.End - s.Start
}

// SourcePoint is line:column position (1-based).
type SourcePoint struct {
	Line   int
	Column int
}

// SourceSpan is start-end line:column range.
type SourceSpan struct {
	Start SourcePoint
	End   SourcePoint
}

// Location combines byte offsets and source positions.
type Location struct {
	Offset OffsetSpan
	Source SourceSpan
}

// LineIndex resolves byte offsets to line:column positions. Building it
// costs one pass over the content; each lookup is a binary search.
type LineIndex struct {
	starts []int // byte offset of each line start
}

// NewLineIndex indexes the line starts of content.
func NewLineIndex(content []byte) *LineIndex {
	starts := []int{0}
	for i, c := range content {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{starts: starts}
}

// Point returns the 1-based position of byte offset.
func (x *LineIndex) Point(offset int) SourcePoint {
	line := sort.Search(len(x.starts), func(i int) bool { return x.starts[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	return SourcePoint{Line: line + 1, Column: offset - x.starts[line] + 1}
}

// Span returns the source span covering [start, end).
func (x *LineIndex) Span(start, end int) SourceSpan {
	return SourceSpan{Start: x.Point(start), End: x.Point(end)}
}

// ComputeLineColumn computes line and column numbers from a byte offset in content.
// Lines and columns are 1-indexed (first line is 1, first column is 1).
func ComputeLineColumn(content []byte, byteOffset int) (line, column int) {
	if byteOffset > len(content) {
		byteOffset = len(content)
	}
	p := NewLineIndex(content[:byteOffset]).Point(byteOffset)
	return p.Line, p.Column
}
