package matcher

import (
	"time"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// RuleStatus represents how a rule finished on a blob.
type RuleStatus int

const (
	// RuleCompleted means every match of the rule was returned.
	RuleCompleted RuleStatus = iota
	// RuleTruncated means MaxMatchesPerBlob cut the rule's matches short.
	RuleTruncated
)

// String returns the string representation of RuleStatus
func (rs RuleStatus) String() string {
	switch rs {
	case RuleCompleted:
		return "completed"
	case RuleTruncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// RuleStat contains per-rule statistics for one blob.
type RuleStat struct {
	RuleID  string
	SID     uint32
	Status  RuleStatus
	Matches int // matches returned after deduplication
	Hits    int // raw engine hits before deduplication
}

// ResultSummary provides aggregate statistics for a scan
type ResultSummary struct {
	TotalRules   int           // rules loaded in the matcher
	MatchedRules int           // rules with at least one match
	TotalMatches int           // matches returned
	Truncated    bool          // MaxMatchesPerBlob was reached
	Chunks       int           // chunks the blob was split into
	Duration     time.Duration // wall time of the scan
}

// MatchResult contains matches and execution statistics
type MatchResult struct {
	Matches   []*types.Match      // Successful matches
	RuleStats map[string]RuleStat // Statistics for each matched rule (keyed by RuleID)
	Summary   ResultSummary       // Aggregate statistics
}
