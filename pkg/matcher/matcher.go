package matcher

import (
	"log/slog"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// Matcher scans content for rule matches.
type Matcher interface {
	// Match scans content against all loaded rules.
	Match(content []byte) ([]*types.Match, error)

	// MatchWithBlobID scans content with a known BlobID.
	MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error)

	// Close releases the underlying engine.
	Close() error
}

// Config for matcher initialization.
type Config struct {
	// Rules to compile and load into the matcher
	Rules []*types.Rule

	// Engine names the search backend (dfc, ahocorasick, leftmost, hyperscan). Empty means dfc.
	Engine string

	// ContextLines is the number of lines captured before and after each match.
	ContextLines int

	// MaxMatchesPerBlob limits matches returned per blob (0 = unlimited)
	MaxMatchesPerBlob int

	// Dedupe selects how repeated matches within a blob are collapsed.
	Dedupe DedupeMode

	// Chunk controls splitting of large blobs and stream block size.
	Chunk ChunkConfig

	Logger *slog.Logger
}

// New creates a Matcher for cfg.
func New(cfg Config) (Matcher, error) {
	return NewLiteral(cfg)
}
