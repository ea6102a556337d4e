package matcher

// ChunkConfig configures content chunking behavior
type ChunkConfig struct {
	MaxChunkSize int // Maximum size of a chunk in bytes (default: 5MB)
}

// DefaultChunkConfig returns production defaults
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize: 5 * 1024 * 1024,
	}
}

// Chunk represents a portion of content with position info
type Chunk struct {
	Content     []byte // The chunk content, a sub-slice of the original
	StartOffset int    // Byte offset in original content where this chunk starts
	EndOffset   int    // Byte offset in original content where this chunk ends
	Index       int    // Chunk number (0-indexed)
}

// ChunkContent splits content into chunks of at most MaxChunkSize bytes.
// Consecutive chunks share overlap bytes, so any occurrence no longer than
// overlap+1 lies wholly inside at least one chunk. Chunks are grown to twice
// the overlap when MaxChunkSize is smaller than that.
func ChunkContent(content []byte, config ChunkConfig, overlap int) []Chunk {
	size := config.MaxChunkSize
	if overlap < 0 {
		overlap = 0
	}
	if size < 2*overlap {
		size = 2 * overlap
	}
	if size <= 0 || len(content) <= size {
		return []Chunk{{
			Content:     content,
			StartOffset: 0,
			EndOffset:   len(content),
			Index:       0,
		}}
	}

	step := size - overlap
	chunks := make([]Chunk, 0, len(content)/step+1)
	for start := 0; ; start += step {
		end := min(start+size, len(content))
		chunks = append(chunks, Chunk{
			Content:     content[start:end],
			StartOffset: start,
			EndOffset:   end,
			Index:       len(chunks),
		})
		if end == len(content) {
			return chunks
		}
	}
}
