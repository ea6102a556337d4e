package dfc

import "encoding/binary"

// build populates the filter bank and compact tables from the store.
func (e *Engine) build() {
	e.bank = newFilterBank()
	e.ct2 = newCompactTable(ct2Buckets, 2)
	e.ct4 = newCompactTable(ct4Buckets, 4)
	e.ct8 = newCompactTable(ct8Buckets, 8)

	for _, p := range e.store.Patterns() {
		switch n := p.Len(); {
		case n == 1:
			e.addSingle(p)
			e.stats.SinglePatterns++
		case n < 4:
			e.addShort(p)
			e.stats.ShortPatterns++
		case n < 8:
			e.addFour(p)
			e.stats.FourPatterns++
		default:
			e.addEight(p)
			e.stats.EightPatterns++
		}
	}

	patterns := e.store.Patterns()
	e.stats.RefinedEntries = e.ct2.refine(patterns, 2) +
		e.ct4.refine(patterns, 4) +
		e.ct8.refine(patterns, 8)
	e.stats.TableEntries = e.ct2.entries + e.ct4.entries + e.ct8.entries
}

func (e *Engine) addSingle(p *Pattern) {
	forEachVariant(p.Content[:1], p.NoCase, func(v []byte) {
		c := v[0]
		for hi := 0; hi < 256; hi++ {
			e.bank.base.Set(uint16(c) | uint16(hi)<<8)
		}
		e.bank.single.Set(uint(c))
		e.ct1[c] = appendUnique(e.ct1[c], p.ID)
	})
}

func (e *Engine) addShort(p *Pattern) {
	n := p.Len()
	window := p.Content[n-2:]
	setVariants(window, p.NoCase, e.bank.base, e.bank.short)
	forEachVariant(window, p.NoCase, func(v []byte) {
		e.ct2.insert(uint64(le16(v)), p.ID)
	})
}

func (e *Engine) addFour(p *Pattern) {
	n := p.Len()
	setVariants(p.Content[n-4:n-2], p.NoCase, e.bank.base)
	setVariants(p.Content[n-2:], p.NoCase, e.bank.four, e.bank.fourOnly)
	forEachVariant(p.Content[n-4:], p.NoCase, func(v []byte) {
		e.ct4.insert(uint64(le32(v)), p.ID)
	})
}

// addEight anchors patterns of eight bytes or more on their last eight
// bytes, so every length in the class shares one probe.
func (e *Engine) addEight(p *Pattern) {
	n := p.Len()
	setVariants(p.Content[n-8:n-6], p.NoCase, e.bank.base)
	setVariants(p.Content[n-6:n-4], p.NoCase, e.bank.four)
	setVariants(p.Content[n-4:n-2], p.NoCase, e.bank.eightMid)
	setVariants(p.Content[n-2:], p.NoCase, e.bank.eightHi)
	e.ct8.insert(binary.LittleEndian.Uint64(p.Folded[n-8:]), p.ID)
}
