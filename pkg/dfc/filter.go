package dfc

import "github.com/bits-and-blooms/bitset"

const filterBits = 1 << 16

// Filter is a membership bitmap over 16-bit little-endian fragments.
// A set bit means some pattern may produce that fragment.
type Filter struct {
	bits *bitset.BitSet
}

// NewFilter returns an empty filter.
func NewFilter() *Filter {
	return &Filter{bits: bitset.New(filterBits)}
}

// Set marks fragment as possible.
func (f *Filter) Set(fragment uint16) {
	f.bits.Set(uint(fragment))
}

// Test reports whether fragment may belong to a pattern.
func (f *Filter) Test(fragment uint16) bool {
	return f.bits.Test(uint(fragment))
}

// Count returns the number of set bits.
func (f *Filter) Count() uint {
	return f.bits.Count()
}

// FilterBank is the cascade consulted at every scan position.
type FilterBank struct {
	// base is tested on every two-byte window.
	base *Filter

	// single holds the first byte of every one-byte pattern.
	single *bitset.BitSet

	// short covers the tail of 2-3 byte patterns.
	short *Filter

	// four is tested on the window's second pair for patterns of 4 bytes and up.
	four *Filter

	// fourOnly repeats four for 4-7 byte patterns alone.
	fourOnly *Filter

	// eightHi and eightMid cover bytes 6-7 and 4-5 of the 8-byte window.
	eightHi  *Filter
	eightMid *Filter
}

func newFilterBank() *FilterBank {
	return &FilterBank{
		base:     NewFilter(),
		single:   bitset.New(256),
		short:    NewFilter(),
		four:     NewFilter(),
		fourOnly: NewFilter(),
		eightHi:  NewFilter(),
		eightMid: NewFilter(),
	}
}

// setVariants sets every case variant of a two-byte window in each filter.
func setVariants(window []byte, noCase bool, filters ...*Filter) {
	forEachVariant(window, noCase, func(v []byte) {
		frag := le16(v)
		for _, f := range filters {
			f.Set(frag)
		}
	})
}

// FilterDensity reports the set bit count of each filter in the bank.
type FilterDensity struct {
	Base     uint `json:"base"`
	Single   uint `json:"single"`
	Short    uint `json:"short"`
	Four     uint `json:"four"`
	FourOnly uint `json:"four_only"`
	EightHi  uint `json:"eight_hi"`
	EightMid uint `json:"eight_mid"`
}

func (b *FilterBank) density() FilterDensity {
	return FilterDensity{
		Base:     b.base.Count(),
		Single:   b.single.Count(),
		Short:    b.short.Count(),
		Four:     b.four.Count(),
		FourOnly: b.fourOnly.Count(),
		EightHi:  b.eightHi.Count(),
		EightMid: b.eightMid.Count(),
	}
}
