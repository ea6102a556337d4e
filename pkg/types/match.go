package types

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// Match is a single detection result.
type Match struct {
	BlobID       BlobID
	StructuralID string // SHA-1(rule_structural_id + '\0' + blob_id + '\0' + start + '\0' + end)
	FindingID    string // SHA-1(rule_structural_id + '\0' + folded content)
	RuleID       string // e.g., "sieve.cred.1"
	RuleName     string
	SID          uint32
	Pattern      []byte // the literal as written in the rule
	NoCase       bool
	Location     Location
	Snippet      Snippet
}

// ComputeStructuralID computes a location-based unique ID.
// Format: SHA-1(rule_structural_id + '\0' + blob_id + '\0' + start + '\0' + end)
func (m *Match) ComputeStructuralID(ruleStructuralID string) string {
	h := sha1.New()

	h.Write([]byte(ruleStructuralID))
	h.Write([]byte{0})

	h.Write(m.BlobID[:])
	h.Write([]byte{0})

	h.Write([]byte(strconv.FormatInt(m.Location.Offset.Start, 10)))
	h.Write([]byte{0})

	h.Write([]byte(strconv.FormatInt(m.Location.Offset.End, 10)))

	return hex.EncodeToString(h.Sum(nil))
}
