package enum

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec names reported in DecompressedProvenance.
const (
	CodecGzip = "gzip"
	CodecZstd = "zstd"
	CodecLZ4  = "lz4"
)

// ErrTooLarge is returned when decompressed output exceeds the size limit.
var ErrTooLarge = errors.New("decompressed content exceeds size limit")

// codecFor returns the codec implied by path's extension, or "".
func codecFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CodecGzip
	case ".zst", ".zstd":
		return CodecZstd
	case ".lz4":
		return CodecLZ4
	default:
		return ""
	}
}

// Decompress inflates content with codec. limit caps the output size
// (0 = no limit).
func Decompress(codec string, content []byte, limit int64) ([]byte, error) {
	var r io.Reader
	switch codec {
	case CodecGzip:
		zr, err := gzip.NewReader(bytes.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		r = zr
	case CodecZstd:
		zr, err := zstd.NewReader(bytes.NewReader(content), zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	case CodecLZ4:
		r = lz4.NewReader(bytes.NewReader(content))
	default:
		return nil, fmt.Errorf("unsupported codec %q", codec)
	}
	return readLimited(r, limit)
}

// readLimited reads r to EOF, failing with ErrTooLarge past limit bytes.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
