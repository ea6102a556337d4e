package rule

import (
	"bytes"
	"fmt"

	"github.com/praetorian-inc/sieve/pkg/dfc"
	"github.com/praetorian-inc/sieve/pkg/types"
)

// ValidateRule checks rule consistency and required fields.
// Returns error if rule is invalid.
func ValidateRule(r *types.Rule) error {
	if r == nil {
		return fmt.Errorf("rule is nil")
	}

	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.SID == 0 {
		return fmt.Errorf("rule %s: sid is required", r.ID)
	}
	if len(r.Patterns) == 0 {
		return fmt.Errorf("rule %s: at least one pattern is required", r.ID)
	}
	for i, p := range r.Patterns {
		if n := len(p.Content); n == 0 || n > dfc.DefaultMaxPatternLength {
			return fmt.Errorf("rule %s: pattern %d has length %d, want 1..%d",
				r.ID, i, n, dfc.DefaultMaxPatternLength)
		}
	}

	expectedID := r.ComputeStructuralID()
	if r.StructuralID != "" && r.StructuralID != expectedID {
		return fmt.Errorf("rule %s has inconsistent StructuralID: got %s, expected %s",
			r.ID, r.StructuralID, expectedID)
	}

	for _, ex := range r.Examples {
		if !ruleMatches(r, []byte(ex)) {
			return fmt.Errorf("rule %s: example %q does not match", r.ID, ex)
		}
	}
	for _, ex := range r.NegativeExamples {
		if ruleMatches(r, []byte(ex)) {
			return fmt.Errorf("rule %s: negative example %q matches", r.ID, ex)
		}
	}

	return nil
}

// ValidateRules validates each rule and checks that IDs and sids are unique.
func ValidateRules(rules []*types.Rule) error {
	ids := make(map[string]bool, len(rules))
	sids := make(map[uint32]string, len(rules))
	for _, r := range rules {
		if err := ValidateRule(r); err != nil {
			return err
		}
		if ids[r.ID] {
			return fmt.Errorf("duplicate rule ID: %s", r.ID)
		}
		ids[r.ID] = true
		if other, ok := sids[r.SID]; ok {
			return fmt.Errorf("rules %s and %s share sid %d", other, r.ID, r.SID)
		}
		sids[r.SID] = r.ID
	}
	return nil
}

// ValidateRuleset checks ruleset consistency and required fields.
// knownRuleIDs is a map of valid rule IDs for reference checking.
// Returns error if ruleset is invalid.
func ValidateRuleset(rs *types.Ruleset, knownRuleIDs map[string]bool) error {
	if rs == nil {
		return fmt.Errorf("ruleset is nil")
	}

	if rs.ID == "" {
		return fmt.Errorf("ruleset ID is required")
	}
	if rs.Name == "" {
		return fmt.Errorf("ruleset name is required")
	}
	if len(rs.RuleIDs) == 0 {
		return fmt.Errorf("ruleset %s must reference at least one rule", rs.ID)
	}

	if knownRuleIDs != nil {
		for _, ruleID := range rs.RuleIDs {
			if !knownRuleIDs[ruleID] {
				return fmt.Errorf("ruleset %s references unknown rule ID: %s", rs.ID, ruleID)
			}
		}
	}

	seen := make(map[string]bool)
	for _, ruleID := range rs.RuleIDs {
		if seen[ruleID] {
			return fmt.Errorf("ruleset %s contains duplicate rule ID: %s", rs.ID, ruleID)
		}
		seen[ruleID] = true
	}

	return nil
}

// ruleMatches is a naive containment check used only for examples.
func ruleMatches(r *types.Rule, content []byte) bool {
	folded := bytes.ToUpper(content)
	for _, p := range r.Patterns {
		if p.NoCase {
			if bytes.Contains(folded, bytes.ToUpper(p.Content)) {
				return true
			}
			continue
		}
		if bytes.Contains(content, p.Content) {
			return true
		}
	}
	return false
}
