package dfc

import "encoding/binary"

// upperTable maps every byte to its ASCII upper-case form.
var upperTable = func() (t [256]byte) {
	for i := range t {
		c := byte(i)
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		t[i] = c
	}
	return t
}()

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// Fold returns an upper-cased copy of p.
func Fold(p []byte) []byte {
	out := make([]byte, len(p))
	for i, c := range p {
		out[i] = upperTable[c]
	}
	return out
}

// forEachVariant calls fn once for the window itself when noCase is false,
// otherwise once per upper/lower combination of its alphabetic bytes.
// The slice handed to fn is reused between calls.
func forEachVariant(window []byte, noCase bool, fn func(v []byte)) {
	buf := make([]byte, len(window))
	copy(buf, window)
	if !noCase {
		fn(buf)
		return
	}

	var alpha []int
	for i, c := range window {
		if isAlpha(c) {
			alpha = append(alpha, i)
		}
	}
	for mask := 0; mask < 1<<len(alpha); mask++ {
		for bit, idx := range alpha {
			if mask&(1<<bit) != 0 {
				buf[idx] = upperTable[window[idx]]
			} else {
				buf[idx] = toLower(window[idx])
			}
		}
		fn(buf)
	}
}

func le16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }

func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// foldedKey64 reads eight bytes upper-cased, little-endian.
func foldedKey64(b []byte) uint64 {
	_ = b[7]
	return uint64(upperTable[b[0]]) |
		uint64(upperTable[b[1]])<<8 |
		uint64(upperTable[b[2]])<<16 |
		uint64(upperTable[b[3]])<<24 |
		uint64(upperTable[b[4]])<<32 |
		uint64(upperTable[b[5]])<<40 |
		uint64(upperTable[b[6]])<<48 |
		uint64(upperTable[b[7]])<<56
}
