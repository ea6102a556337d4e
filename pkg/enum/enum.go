package enum

import (
	"context"
	"log/slog"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// Callback receives blob content, its ID, and provenance information.
type Callback func(content []byte, blobID types.BlobID, prov types.Provenance) error

// Enumerator discovers content to scan from a source.
type Enumerator interface {
	// Enumerate yields blobs from the source.
	Enumerate(ctx context.Context, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error
}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration.
	Root string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// IncludeBinary yields files containing NUL bytes. Binary files are
	// skipped otherwise.
	IncludeBinary bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	// It also bounds each decompressed or extracted blob.
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// Decompress inflates .gz, .zst and .lz4 files before scanning.
	Decompress bool

	// ExtractArchives expands archive members and document text
	// (comma-separated: zip,7z,pdf or 'all').
	ExtractArchives string

	// ExtractLimits bounds archive extraction.
	ExtractLimits ExtractLimits

	Logger *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// prepare inflates content named name when Decompress is set and reports
// whether the result should be yielded.
func (c Config) prepare(name string, content []byte) ([]byte, bool) {
	if c.Decompress {
		if codec := codecFor(name); codec != "" {
			inflated, err := Decompress(codec, content, c.MaxFileSize)
			if err != nil {
				c.logger().Debug("skipping compressed blob", "path", name, "codec", codec, "error", err)
				return nil, false
			}
			content = inflated
		}
	}
	if !c.IncludeBinary && isBinary(content) {
		return nil, false
	}
	return content, true
}
