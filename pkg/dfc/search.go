package dfc

// scan runs the filter cascade over v.buf.
func (e *Engine) scan(v *verifier) int {
	buf := v.buf
	n := len(buf)
	bank := e.bank
	total := 0

	for i := 0; i+1 < n; i++ {
		frag := le16(buf[i:])
		if !bank.base.Test(frag) {
			continue
		}

		if bank.single.Test(uint(buf[i])) {
			total += v.check(e.ct1[buf[i]], i+1)
		}
		if bank.short.Test(frag) {
			total += e.probe(v, e.ct2, uint64(frag), i, i+2)
		}

		if n-i < 4 {
			continue
		}
		next := le16(buf[i+2:])
		if !bank.four.Test(next) {
			continue
		}
		if bank.fourOnly.Test(next) {
			total += e.probe(v, e.ct4, uint64(le32(buf[i:])), i, i+4)
		}

		if n-i < 8 {
			continue
		}
		if !bank.eightHi.Test(le16(buf[i+6:])) {
			continue
		}
		if !bank.eightMid.Test(le16(buf[i+4:])) {
			continue
		}
		total += e.probe(v, e.ct8, foldedKey64(buf[i:]), i, i+8)
	}

	// The two-byte loop never starts at the last byte.
	if n > 0 && bank.single.Test(uint(buf[n-1])) {
		total += v.check(e.ct1[buf[n-1]], n)
	}
	return total
}

// probe looks key up in t for the window [i, end).
func (e *Engine) probe(v *verifier, t *CompactTable, key uint64, i, end int) int {
	ent := t.lookup(key)
	if ent == nil {
		return 0
	}
	total := v.check(ent.ids, end)
	if ent.kind != Refined {
		return total
	}

	r := ent.nested
	if i < 2 {
		return total + v.check(r.all, end)
	}
	nk := le16(v.buf[i-2:])
	if !r.filter.Test(nk) {
		return total
	}
	if ne := r.table.lookup(uint64(nk)); ne != nil {
		total += v.check(ne.ids, end)
	}
	return total
}
