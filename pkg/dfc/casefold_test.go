package dfc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpperTable(t *testing.T) {
	assert.Equal(t, byte('A'), upperTable['a'])
	assert.Equal(t, byte('Z'), upperTable['z'])
	assert.Equal(t, byte('A'), upperTable['A'])
	assert.Equal(t, byte('1'), upperTable['1'])
	assert.Equal(t, byte(0xe9), upperTable[0xe9])
}

func TestFold(t *testing.T) {
	in := []byte("Hello, World 42")
	out := Fold(in)

	assert.Equal(t, []byte("HELLO, WORLD 42"), out)
	assert.Equal(t, []byte("Hello, World 42"), in, "input must not be modified")
}

func TestForEachVariant(t *testing.T) {
	tests := []struct {
		name   string
		window string
		noCase bool
		want   []string
	}{
		{"case sensitive", "aB", false, []string{"aB"}},
		{"two letters", "aB", true, []string{"ab", "Ab", "aB", "AB"}},
		{"digit and letter", "1x", true, []string{"1x", "1X"}},
		{"no letters", "12", true, []string{"12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			forEachVariant([]byte(tt.window), tt.noCase, func(v []byte) {
				got = append(got, string(v))
			})
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestFoldedKey64(t *testing.T) {
	assert.Equal(t, foldedKey64([]byte("ABCDEFGH")), foldedKey64([]byte("abcdefgh")))
	assert.NotEqual(t, foldedKey64([]byte("ABCDEFGH")), foldedKey64([]byte("ABCDEFGX")))
}
