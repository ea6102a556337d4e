package matcher

import "bytes"

// ExtractContext returns up to lines lines before start and after end.
// The results are copies, so keeping them does not pin content in memory.
// The matched bytes themselves are not included. Out of range arguments
// yield no context.
func ExtractContext(content []byte, start, end int, lines int) (before, after []byte) {
	if lines <= 0 || start < 0 || end > len(content) || start > end {
		return nil, nil
	}
	return bytes.Clone(contextBefore(content, start, lines)),
		bytes.Clone(contextAfter(content, end, lines))
}

// contextBefore walks back over lines newlines and returns everything
// from the start of the line that the last of them terminates.
func contextBefore(content []byte, start, lines int) []byte {
	pos := start
	for i := 0; i < lines; i++ {
		nl := bytes.LastIndexByte(content[:pos], '\n')
		if nl < 0 {
			return content[:start]
		}
		pos = nl
	}
	return content[bytes.LastIndexByte(content[:pos], '\n')+1 : start]
}

// contextAfter returns up to lines complete lines following end. A newline
// directly at end belongs to the matched line and is skipped.
func contextAfter(content []byte, end, lines int) []byte {
	if end >= len(content) {
		return nil
	}
	from := end
	if content[end] == '\n' {
		from++
	}
	pos := from
	for i := 0; i < lines; i++ {
		nl := bytes.IndexByte(content[pos:], '\n')
		if nl < 0 {
			return content[from:]
		}
		pos += nl + 1
	}
	return content[from:pos]
}
