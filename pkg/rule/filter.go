package rule

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/sieve/pkg/types"
)

// FilterConfig specifies include and exclude patterns for rule filtering.
type FilterConfig struct {
	Include []string // Regex patterns - only matching rules included
	Exclude []string // Regex patterns - matching rules excluded
}

// ParsePatterns splits a comma-separated string into individual patterns.
// Patterns are trimmed of whitespace.
func ParsePatterns(patterns string) []string {
	if patterns == "" {
		return []string{}
	}

	parts := strings.Split(patterns, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Filter applies include and exclude patterns to rule IDs.
// Include is applied first, then exclude. Empty include means "include all".
// Patterns use .NET-style regex syntax, so lookarounds such as
// `^(?!sieve\.test\.)` are allowed.
func Filter(rules []*types.Rule, config FilterConfig) ([]*types.Rule, error) {
	if len(rules) == 0 {
		return rules, nil
	}

	include, err := compileAll(config.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(config.Exclude)
	if err != nil {
		return nil, err
	}

	result := make([]*types.Rule, 0, len(rules))
	for _, r := range rules {
		if len(include) > 0 {
			ok, err := matchesAny(r.ID, include)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		if len(exclude) > 0 {
			ok, err := matchesAny(r.ID, exclude)
			if err != nil {
				return nil, err
			}
			if ok {
				continue
			}
		}
		result = append(result, r)
	}
	return result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func compileAll(patterns []string) ([]*regexp2.Regexp, error) {
	var regexes []*regexp2.Regexp
	for _, pattern := range patterns {
		re, err := regexp2.Compile(pattern, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		regexes = append(regexes, re)
	}
	return regexes, nil
}

func matchesAny(ruleID string, regexes []*regexp2.Regexp) (bool, error) {
	for _, re := range regexes {
		ok, err := re.MatchString(ruleID)
		if err != nil {
			return false, fmt.Errorf("matching %q against %q: %w", ruleID, re.String(), err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
