package types

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
)

// Finding groups matches of one rule on the same content.
type Finding struct {
	ID      string // SHA-1(rule_structural_id + '\0' + content)
	RuleID  string
	Content []byte
	Matches []*Match
}

// ComputeFindingID computes a content-based finding ID. Content of
// case-insensitive matches is upper-cased first so "Token" and "TOKEN"
// fold into one finding.
func ComputeFindingID(ruleStructuralID string, content []byte, noCase bool) string {
	h := sha1.New()

	h.Write([]byte(ruleStructuralID))
	h.Write([]byte{0})

	if noCase {
		content = bytes.ToUpper(content)
	}
	h.Write(content)

	return hex.EncodeToString(h.Sum(nil))
}
