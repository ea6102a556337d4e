package matcher

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// ScanReader streams r through the engine in blocks of Chunk.MaxChunkSize
// bytes. Each block is searched together with the last LongestPattern-1
// bytes of the previous one, so occurrences spanning a block boundary are
// found once. fn receives matches with absolute offsets; line positions are
// not computed. It returns the number of bytes read.
func (m *LiteralMatcher) ScanReader(ctx context.Context, r io.Reader, blobID types.BlobID, fn func(*types.Match) error) (int64, error) {
	overlap := max(m.engine.LongestPattern()-1, 0)
	block := m.cfg.Chunk.MaxChunkSize

	buf := make([]byte, 0, overlap+block)
	dedup := NewDeduplicatorWithMode(m.cfg.Dedupe)
	var (
		base     int64 // absolute offset of buf[0]
		carry    int   // bytes of buf already searched
		read     int64
		reported int
	)

	for {
		if err := ctx.Err(); err != nil {
			return read, err
		}

		n, rerr := io.ReadFull(r, buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		read += int64(n)

		if n > 0 {
			hits, err := m.scanChunk(Chunk{Content: buf})
			if err != nil {
				return read, err
			}
			sortHits(hits)
			for _, h := range hits {
				if h.end <= carry {
					continue
				}
				if m.cfg.MaxMatchesPerBlob > 0 && reported >= m.cfg.MaxMatchesPerBlob {
					break
				}
				match := m.newMatch(buf, nil, blobID, h, base)
				if !dedup.CheckAndAdd(match) {
					continue
				}
				reported++
				if err := fn(match); err != nil {
					return read, err
				}
			}
		}

		if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
			return read, nil
		}
		if rerr != nil {
			return read, fmt.Errorf("read stream: %w", rerr)
		}

		keep := min(overlap, len(buf))
		copy(buf, buf[len(buf)-keep:])
		base += int64(len(buf) - keep)
		buf = buf[:keep]
		carry = keep
	}
}
