package dfc

// castagnoli is the reflected CRC-32C polynomial.
const castagnoli = 0x82F63B78

// Checksum folds p through a bitwise CRC-32C with a zero initial value and
// no final inversion. It has no state and is safe for concurrent use.
func Checksum(p []byte) uint32 {
	var crc uint32
	for _, b := range p {
		crc = crcByte(crc, b)
	}
	return crc
}

// hashFragment is Checksum over the low width bytes of v, least
// significant byte first.
func hashFragment(v uint64, width int) uint32 {
	var crc uint32
	for i := 0; i < width; i++ {
		crc = crcByte(crc, byte(v>>(8*i)))
	}
	return crc
}

func crcByte(crc uint32, b byte) uint32 {
	crc ^= uint32(b)
	for k := 0; k < 8; k++ {
		crc = (crc >> 1) ^ (castagnoli & -(crc & 1))
	}
	return crc
}
