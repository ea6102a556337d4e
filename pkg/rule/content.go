package rule

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// DecodeContent turns a content string into raw bytes. Text between pipes
// is hex, e.g. "GET |20 2f|admin". A backslash escapes the next byte, so
// "\|" is a literal pipe.
func DecodeContent(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	inHex := false
	var hexBuf strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inHex && c == '|':
			b, err := hex.DecodeString(hexBuf.String())
			if err != nil {
				return nil, fmt.Errorf("invalid hex segment %q: %w", hexBuf.String(), err)
			}
			out = append(out, b...)
			hexBuf.Reset()
			inHex = false
		case inHex:
			if c == ' ' || c == '\t' {
				continue
			}
			hexBuf.WriteByte(c)
		case c == '|':
			inHex = true
		case c == '\\':
			if i+1 == len(s) {
				return nil, fmt.Errorf("trailing escape in %q", s)
			}
			i++
			out = append(out, s[i])
		default:
			out = append(out, c)
		}
	}

	if inHex {
		return nil, fmt.Errorf("unterminated hex segment in %q", s)
	}
	return out, nil
}

// EncodeContent is the inverse of DecodeContent. Printable ASCII is kept
// as text and everything else is written as a hex segment.
func EncodeContent(b []byte) string {
	var sb strings.Builder
	inHex := false
	for _, c := range b {
		printable := c >= 0x20 && c < 0x7f
		if printable {
			if inHex {
				sb.WriteByte('|')
				inHex = false
			}
			if c == '|' || c == '\\' || c == '"' || c == ';' {
				sb.WriteByte('\\')
			}
			sb.WriteByte(c)
			continue
		}
		if inHex {
			sb.WriteByte(' ')
		} else {
			sb.WriteByte('|')
			inHex = true
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	if inHex {
		sb.WriteByte('|')
	}
	return sb.String()
}
