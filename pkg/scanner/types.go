package scanner

import (
	"time"

	"github.com/praetorian-inc/sieve/pkg/store"
	"github.com/praetorian-inc/sieve/pkg/types"
)

// ContentItem represents a content item to scan
type ContentItem struct {
	Source   string            `json:"source"`   // e.g., "script:inline:1", "capture.pcap#12"
	Content  string            `json:"content"`  // the actual content to scan
	Metadata map[string]string `json:"metadata"` // optional metadata
}

// ScanResult represents scan results for a single item
type ScanResult struct {
	Source  string         `json:"source"`
	BlobID  types.BlobID   `json:"blob_id"`
	Matches []*types.Match `json:"matches"`
	Skipped bool           `json:"skipped,omitempty"` // blob already scanned in incremental mode
	Error   string         `json:"error,omitempty"`
}

// BatchScanResult represents batch scan results
type BatchScanResult struct {
	Results []ScanResult `json:"results"`
	Total   int          `json:"total"`
}

// Stats summarizes a Core's lifetime.
type Stats struct {
	Engine       string        `json:"engine"`
	Rules        int           `json:"rules"`
	Patterns     int           `json:"patterns"`
	BlobsScanned int64         `json:"blobs_scanned"`
	BlobsSkipped int64         `json:"blobs_skipped"`
	BytesScanned int64         `json:"bytes_scanned"`
	Matches      int64         `json:"matches"`
	CompileTime  time.Duration `json:"compile_time"`
	Store        store.Stats   `json:"store"`
}
