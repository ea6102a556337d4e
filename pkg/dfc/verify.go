package dfc

// MatchFunc receives each confirmed occurrence: the pattern as added, its
// sids in insertion order, and the offset of the first matched byte.
type MatchFunc func(pattern []byte, sids []uint32, offset int)

// verifier confirms candidates for one Search call.
type verifier struct {
	patterns []*Pattern
	buf      []byte
	fn       MatchFunc
}

// check verifies candidates whose occurrence would end at end and returns
// the number of sids reported.
func (v *verifier) check(ids []uint32, end int) int {
	total := 0
	for _, id := range ids {
		p := v.patterns[id]
		start := end - p.Len()
		if !p.MatchAt(v.buf, start) {
			continue
		}
		if v.fn != nil {
			v.fn(p.Content, p.SIDs, start)
		}
		total += len(p.SIDs)
	}
	return total
}
