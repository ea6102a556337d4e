package matcher

import (
	"testing"

	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/stretchr/testify/assert"
)

func dedupMatch(rule string, start, end int64, findingID string) *types.Match {
	return &types.Match{
		RuleID:    rule,
		FindingID: findingID,
		Location:  types.Location{Offset: types.OffsetSpan{Start: start, End: end}},
	}
}

func TestDeduplicator_Location(t *testing.T) {
	d := NewDeduplicator()

	a := dedupMatch("r1", 10, 14, "f1")
	assert.False(t, d.IsDuplicate(a))
	assert.True(t, d.CheckAndAdd(a))
	assert.True(t, d.IsDuplicate(a))
	assert.False(t, d.CheckAndAdd(a))

	// Same rule, same start, different length.
	assert.True(t, d.CheckAndAdd(dedupMatch("r1", 10, 16, "f1")))
	// Different rule, same span.
	assert.True(t, d.CheckAndAdd(dedupMatch("r2", 10, 14, "f1")))
	// Same content elsewhere.
	assert.True(t, d.CheckAndAdd(dedupMatch("r1", 20, 24, "f1")))

	assert.Equal(t, 4, d.Len())
}

func TestDeduplicator_Content(t *testing.T) {
	d := NewContentDeduplicator()

	assert.True(t, d.CheckAndAdd(dedupMatch("r1", 10, 14, "f1")))
	assert.False(t, d.CheckAndAdd(dedupMatch("r1", 90, 94, "f1")))
	assert.True(t, d.CheckAndAdd(dedupMatch("r1", 90, 94, "f2")))
	assert.Equal(t, 2, d.Len())
}

func TestDeduplicator_LargeOffsetFallsBackToStructuralID(t *testing.T) {
	d := NewDeduplicator()
	m := dedupMatch("r1", 1<<33, 1<<33+4, "f1")
	m.StructuralID = "s1"

	assert.True(t, d.CheckAndAdd(m))
	assert.False(t, d.CheckAndAdd(m))
	assert.Equal(t, 1, d.Len())
}

func TestDeduplicator_Reset(t *testing.T) {
	d := NewDeduplicator()
	m := dedupMatch("r1", 1, 2, "f1")
	d.Add(m)
	assert.True(t, d.IsDuplicate(m))

	d.Reset()
	assert.False(t, d.IsDuplicate(m))
	assert.Equal(t, 0, d.Len())
}
