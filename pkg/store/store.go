package store

import (
	"errors"
	"fmt"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// MemoryPath selects the in-memory store.
const MemoryPath = ":memory:"

// Store provides persistence for scan results.
// This interface abstracts the underlying storage implementation,
// allowing for different backends.
type Store interface {
	// AddBlob stores a blob record.
	AddBlob(id types.BlobID, size int64) error

	// AddRule stores a detection rule.
	AddRule(r *types.Rule) error

	// AddMatch stores a match record. Matches are unique by structural ID.
	AddMatch(m *types.Match) error

	// AddFinding stores a finding (deduplicated).
	AddFinding(f *types.Finding) error

	// AddProvenance associates provenance with a blob.
	AddProvenance(blobID types.BlobID, prov types.Provenance) error

	// GetMatches retrieves matches for a blob.
	GetMatches(blobID types.BlobID) ([]*types.Match, error)

	// GetAllMatches retrieves all matches (for JSON export).
	GetAllMatches() ([]*types.Match, error)

	// GetRules retrieves stored rules ordered by sid.
	GetRules() ([]*types.Rule, error)

	// GetFindings retrieves all findings (for reporting).
	GetFindings() ([]*types.Finding, error)

	// GetProvenance retrieves every provenance record of a blob.
	GetProvenance(blobID types.BlobID) ([]types.Provenance, error)

	// FindingExists checks if a finding with this ID exists.
	FindingExists(id string) (bool, error)

	// BlobExists checks if a blob has already been scanned.
	BlobExists(id types.BlobID) (bool, error)

	// Stats returns record counts.
	Stats() (Stats, error)

	// Close closes the database connection.
	Close() error
}

// Stats counts stored records.
type Stats struct {
	Blobs      int `json:"blobs"`
	Rules      int `json:"rules"`
	Matches    int `json:"matches"`
	Findings   int `json:"findings"`
	Provenance int `json:"provenance"`
}

// Config for store initialization.
type Config struct {
	// Path is the database file path.
	// Use ":memory:" for the in-memory store.
	Path string
}

// New creates a store. ":memory:" selects MemoryStore, any other path a
// SQLite database file.
func New(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.Path == MemoryPath {
		return NewMemory(), nil
	}
	return NewSQLite(cfg.Path)
}

// RecordFinding adds m's finding to s unless it exists, building it from
// the match.
func RecordFinding(s Store, m *types.Match) error {
	exists, err := s.FindingExists(m.FindingID)
	if err != nil || exists {
		return err
	}
	return s.AddFinding(&types.Finding{
		ID:      m.FindingID,
		RuleID:  m.RuleID,
		Content: m.Snippet.Matching,
	})
}
