package matcher

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/praetorian-inc/sieve/pkg/types"
)

// DedupeMode controls how matches are deduplicated.
type DedupeMode int

const (
	// DedupeByLocation deduplicates by exact location (rule + offset + length).
	// The same literal at different offsets counts as separate matches.
	DedupeByLocation DedupeMode = iota

	// DedupeByContent deduplicates by matched content (rule + bytes).
	// The same literal appearing many times counts once.
	DedupeByContent
)

type spanKey struct {
	rule   string
	length int64
}

// Deduplicator removes duplicate matches. Location mode keeps one roaring
// bitmap of start offsets per (rule, match length).
type Deduplicator struct {
	mode  DedupeMode
	spans map[spanKey]*roaring.Bitmap
	seen  map[string]bool
}

// NewDeduplicator creates a new deduplicator with location-based deduplication.
func NewDeduplicator() *Deduplicator {
	return NewDeduplicatorWithMode(DedupeByLocation)
}

// NewContentDeduplicator creates a deduplicator that deduplicates by content.
func NewContentDeduplicator() *Deduplicator {
	return NewDeduplicatorWithMode(DedupeByContent)
}

// NewDeduplicatorWithMode creates a deduplicator for mode.
func NewDeduplicatorWithMode(mode DedupeMode) *Deduplicator {
	return &Deduplicator{
		mode:  mode,
		spans: make(map[spanKey]*roaring.Bitmap),
		seen:  make(map[string]bool),
	}
}

// IsDuplicate returns true if match was already seen.
func (d *Deduplicator) IsDuplicate(m *types.Match) bool {
	if bm, start, ok := d.bitmap(m, false); ok {
		return bm != nil && bm.Contains(start)
	}
	return d.seen[d.key(m)]
}

// Add marks a match as seen.
func (d *Deduplicator) Add(m *types.Match) {
	d.CheckAndAdd(m)
}

// CheckAndAdd marks m as seen and reports whether it was new.
func (d *Deduplicator) CheckAndAdd(m *types.Match) bool {
	if bm, start, ok := d.bitmap(m, true); ok {
		return bm.CheckedAdd(start)
	}
	key := d.key(m)
	if d.seen[key] {
		return false
	}
	d.seen[key] = true
	return true
}

// Reset clears the deduplicator for reuse.
func (d *Deduplicator) Reset() {
	clear(d.spans)
	clear(d.seen)
}

// Len returns the number of distinct matches seen.
func (d *Deduplicator) Len() int {
	n := len(d.seen)
	for _, bm := range d.spans {
		n += int(bm.GetCardinality())
	}
	return n
}

// bitmap returns the location bitmap for m. ok is false in content mode and
// for offsets that do not fit in 32 bits.
func (d *Deduplicator) bitmap(m *types.Match, create bool) (*roaring.Bitmap, uint32, bool) {
	start := m.Location.Offset.Start
	if d.mode != DedupeByLocation || start < 0 || start > math.MaxUint32 {
		return nil, 0, false
	}
	k := spanKey{rule: m.RuleID, length: m.Location.Offset.Len()}
	bm := d.spans[k]
	if bm == nil && create {
		bm = roaring.New()
		d.spans[k] = bm
	}
	return bm, uint32(start), true
}

func (d *Deduplicator) key(m *types.Match) string {
	if d.mode == DedupeByContent {
		return m.FindingID
	}
	return m.StructuralID
}
