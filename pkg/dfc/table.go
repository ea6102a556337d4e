package dfc

const (
	ct2Buckets     = 0x1000
	ct4Buckets     = 0x20000
	ct8Buckets     = 0x20000
	nestedBuckets  = 0x1000
	refineBoundary = 5
)

// EntryKind distinguishes flat entries from refined ones.
type EntryKind uint8

const (
	// Direct entries verify every candidate.
	Direct EntryKind = iota

	// Refined entries verify base-length candidates directly and reach the
	// rest through a nested filter and table.
	Refined
)

func (k EntryKind) String() string {
	if k == Refined {
		return "refined"
	}
	return "direct"
}

type entry struct {
	key  uint64
	kind EntryKind

	// ids are all candidates for a Direct entry and the base-length
	// candidates for a Refined one.
	ids []uint32

	// nested is set only when kind is Refined.
	nested *refinement
}

// refinement splits a crowded entry on the two bytes preceding the window.
type refinement struct {
	filter *Filter
	table  *CompactTable

	// all lists every nested candidate once, for windows too close to the
	// start of the buffer to read a nested key.
	all []uint32
}

// CompactTable maps fixed-width fragments to candidate pattern ids.
type CompactTable struct {
	width   int
	mask    uint32
	buckets [][]entry
	entries int
}

func newCompactTable(size, width int) *CompactTable {
	return &CompactTable{
		width:   width,
		mask:    uint32(size - 1),
		buckets: make([][]entry, size),
	}
}

func (t *CompactTable) insert(key uint64, id uint32) {
	b := hashFragment(key, t.width) & t.mask
	bucket := t.buckets[b]
	for i := range bucket {
		if bucket[i].key == key {
			bucket[i].ids = appendUnique(bucket[i].ids, id)
			return
		}
	}
	t.buckets[b] = append(bucket, entry{key: key, ids: []uint32{id}})
	t.entries++
}

func (t *CompactTable) lookup(key uint64) *entry {
	bucket := t.buckets[hashFragment(key, t.width)&t.mask]
	for i := range bucket {
		if bucket[i].key == key {
			return &bucket[i]
		}
	}
	return nil
}

// refine converts every entry holding refineBoundary or more candidates.
// base is the class length, so a candidate of length n has its window at
// offset n-base inside the pattern.
func (t *CompactTable) refine(patterns []*Pattern, base int) int {
	refined := 0
	for b := range t.buckets {
		for i := range t.buckets[b] {
			e := &t.buckets[b][i]
			if len(e.ids) < refineBoundary {
				continue
			}
			if e.refine(patterns, base) {
				refined++
			}
		}
	}
	return refined
}

func (e *entry) refine(patterns []*Pattern, base int) bool {
	var direct, longer []uint32
	for _, id := range e.ids {
		if patterns[id].Len() == base {
			direct = append(direct, id)
		} else {
			longer = append(longer, id)
		}
	}
	if len(longer) == 0 {
		return false
	}

	r := &refinement{
		filter: NewFilter(),
		table:  newCompactTable(nestedBuckets, 2),
		all:    longer,
	}
	for _, id := range longer {
		p := patterns[id]
		off := p.Len() - base
		if off == 1 {
			// One preceding byte: it is the high half of the key and the
			// low half may be anything.
			forEachVariant(p.Content[:1], p.NoCase, func(v []byte) {
				for lo := 0; lo < 256; lo++ {
					r.add(uint16(lo)|uint16(v[0])<<8, id)
				}
			})
			continue
		}
		forEachVariant(p.Content[off-2:off], p.NoCase, func(v []byte) {
			r.add(le16(v), id)
		})
	}

	e.kind = Refined
	e.ids = direct
	e.nested = r
	return true
}

func (r *refinement) add(key uint16, id uint32) {
	r.filter.Set(key)
	r.table.insert(uint64(key), id)
}
