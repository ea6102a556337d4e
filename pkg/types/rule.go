package types

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// Literal is one byte pattern of a rule.
type Literal struct {
	Content []byte // raw bytes, hex segments already decoded
	NoCase  bool   // ASCII case-insensitive comparison
}

// Rule is a detection rule made of literal patterns.
type Rule struct {
	ID               string    // e.g., "sieve.cred.1"
	Name             string    // human-readable name
	SID              uint32    // numeric signature id, unique per ruleset
	Patterns         []Literal // any pattern matching fires the rule
	StructuralID     string    // SHA-1 of patterns (computed)
	Description      string    // optional
	Severity         string    // info, low, medium, high, critical
	Examples         []string  // inputs that must match
	NegativeExamples []string  // inputs that must not match
	References       []string  // documentation URLs
	Categories       []string  // classification tags
}

// ComputeStructuralID hashes the rule's patterns in order. Rules with the
// same patterns share a structural ID regardless of id, name or sid.
func (r *Rule) ComputeStructuralID() string {
	h := sha1.New()
	for _, p := range r.Patterns {
		h.Write([]byte(strconv.FormatBool(p.NoCase)))
		h.Write([]byte{0})
		h.Write([]byte(hex.EncodeToString(p.Content)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MaxPatternLen returns the length of the rule's longest pattern.
func (r *Rule) MaxPatternLen() int {
	n := 0
	for _, p := range r.Patterns {
		if len(p.Content) > n {
			n = len(p.Content)
		}
	}
	return n
}

// Ruleset groups rules together.
type Ruleset struct {
	ID          string
	Name        string
	Description string
	RuleIDs     []string
}
