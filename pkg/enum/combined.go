package enum

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// seenFPRate is the false positive rate of the blob ID bloom filter.
const seenFPRate = 0.001

// CombinedEnumerator runs multiple enumerators sequentially and deduplicates
// blobs by BlobID so each unique blob is yielded at most once.
type CombinedEnumerator struct {
	enumerators []Enumerator
	// ExpectedBlobs sizes the bloom filter (0 = 100000).
	ExpectedBlobs uint
}

// NewCombinedEnumerator creates a CombinedEnumerator that wraps the provided
// enumerators. They are run in order and duplicate blobs (same BlobID) are
// suppressed.
func NewCombinedEnumerator(enumerators ...Enumerator) *CombinedEnumerator {
	return &CombinedEnumerator{enumerators: enumerators}
}

// Enumerate runs each child enumerator in sequence, passing unique blobs to
// callback. A bloom filter answers for blobs never seen before; the exact
// set is only consulted on a bloom hit.
func (c *CombinedEnumerator) Enumerate(ctx context.Context, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	expected := c.ExpectedBlobs
	if expected == 0 {
		expected = 100000
	}

	var mu sync.Mutex
	filter := bloom.NewWithEstimates(expected, seenFPRate)
	seen := make(map[types.BlobID]struct{})

	for _, e := range c.enumerators {
		err := e.Enumerate(ctx, func(content []byte, blobID types.BlobID, prov types.Provenance) error {
			mu.Lock()
			maybeSeen := filter.TestAndAdd(blobID[:])
			if maybeSeen {
				if _, dup := seen[blobID]; dup {
					mu.Unlock()
					return nil
				}
			}
			seen[blobID] = struct{}{}
			mu.Unlock()

			return callback(content, blobID, prov)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
