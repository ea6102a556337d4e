package dfc

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksum_MatchesCastagnoliWithoutInversion(t *testing.T) {
	table := crc32.MakeTable(crc32.Castagnoli)
	inputs := [][]byte{
		{},
		{0x00},
		[]byte("AB"),
		[]byte("ABCD"),
		[]byte("ABCDEFGH"),
		{0xff, 0xfe, 0x00, 0x7f},
	}
	for _, in := range inputs {
		want := ^crc32.Update(0xFFFFFFFF, table, in)
		assert.Equal(t, want, Checksum(in), "input %x", in)
	}
}

func TestHashFragment_FoldsLittleEndianBytes(t *testing.T) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 0x1122334455667788)

	assert.Equal(t, Checksum(buf[:2]), hashFragment(0x7788, 2))
	assert.Equal(t, Checksum(buf[:4]), hashFragment(0x55667788, 4))
	assert.Equal(t, Checksum(buf[:]), hashFragment(0x1122334455667788, 8))
}

func TestChecksum_Deterministic(t *testing.T) {
	p := []byte("deterministic")
	assert.Equal(t, Checksum(p), Checksum(p))
	assert.NotEqual(t, Checksum([]byte("AB")), Checksum([]byte("BA")))
}
