package rule

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestLoadRule_Valid(t *testing.T) {
	loader := NewLoader()

	validYAML := `rules:
  - name: Passwd File Access
    id: sieve.test.1
    sid: 9001
    severity: medium
    patterns:
      - content: /etc/passwd
        nocase: true
      - content: "|2f|etc|2f|shadow"
    description: Requests for local account files
    references:
      - https://owasp.org/www-community/attacks/Path_Traversal
    examples:
      - "GET /ETC/PASSWD"
    negative_examples:
      - "GET /etc/hosts"
    categories:
      - web
      - traversal
`

	rule, err := loader.LoadRule([]byte(validYAML))
	if err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	if rule.ID != "sieve.test.1" {
		t.Errorf("expected ID sieve.test.1, got %s", rule.ID)
	}
	if rule.SID != 9001 {
		t.Errorf("expected sid 9001, got %d", rule.SID)
	}
	if len(rule.Patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(rule.Patterns))
	}
	if !rule.Patterns[0].NoCase || rule.Patterns[1].NoCase {
		t.Errorf("unexpected nocase flags: %+v", rule.Patterns)
	}
	if string(rule.Patterns[1].Content) != "/etc/shadow" {
		t.Errorf("expected hex segments decoded, got %q", rule.Patterns[1].Content)
	}
	if rule.Severity != "medium" {
		t.Errorf("expected severity medium, got %s", rule.Severity)
	}
	if len(rule.References) != 1 || len(rule.Categories) != 2 {
		t.Errorf("unexpected metadata: %+v", rule)
	}
	if rule.StructuralID == "" {
		t.Error("expected StructuralID to be computed")
	}
}

func TestLoadRule_Errors(t *testing.T) {
	tests := map[string]string{
		"invalid yaml":  `this is not valid yaml: [[[`,
		"no rules":      `rules: []`,
		"bad hex":       "rules:\n  - id: x\n    name: x\n    sid: 1\n    patterns:\n      - content: \"|zz|\"\n",
		"multiple rule": "rules:\n  - id: a\n    name: a\n    sid: 1\n  - id: b\n    name: b\n    sid: 2\n",
	}

	loader := NewLoader()
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := loader.LoadRule([]byte(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadRuleset_Valid(t *testing.T) {
	loader := NewLoader()

	validYAML := `rulesets:
  - id: rs.web
    name: Web Rules
    description: Web attack literals
    include_rule_ids:
      - sieve.web.1
      - sieve.web.2
`

	ruleset, err := loader.LoadRuleset([]byte(validYAML))
	if err != nil {
		t.Fatalf("LoadRuleset failed: %v", err)
	}
	if ruleset.ID != "rs.web" || ruleset.Name != "Web Rules" {
		t.Errorf("unexpected ruleset: %+v", ruleset)
	}
	if len(ruleset.RuleIDs) != 2 {
		t.Errorf("expected 2 rule IDs, got %d", len(ruleset.RuleIDs))
	}
}

func TestLoadRuleset_NoRulesets(t *testing.T) {
	loader := NewLoader()

	if _, err := loader.LoadRuleset([]byte(`rulesets: []`)); err == nil {
		t.Error("expected error for empty rulesets array")
	}
}

func TestLoadBuiltinRules_EmptyFS(t *testing.T) {
	mockFS := fstest.MapFS{
		"rules/.gitkeep": &fstest.MapFile{Data: []byte("")},
	}

	rules, err := NewLoaderWithFS(mockFS).LoadBuiltinRules()
	if err != nil {
		t.Fatalf("LoadBuiltinRules failed: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("expected 0 rules from empty directory, got %d", len(rules))
	}
}

func TestLoadBuiltinRules_WithRules(t *testing.T) {
	ruleYAML := `rules:
  - name: Test Rule
    id: sieve.test.1
    sid: 1
    patterns:
      - content: needle
`
	mockFS := fstest.MapFS{
		"rules/test.yml":   &fstest.MapFile{Data: []byte(ruleYAML)},
		"rules/ignored.md": &fstest.MapFile{Data: []byte("# not a rule")},
	}

	rules, err := NewLoaderWithFS(mockFS).LoadBuiltinRules()
	if err != nil {
		t.Fatalf("LoadBuiltinRules failed: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	if rules[0].ID != "sieve.test.1" {
		t.Errorf("expected ID sieve.test.1, got %s", rules[0].ID)
	}
}

func TestLoadBuiltinRules_Embedded(t *testing.T) {
	loader := NewLoader()

	rules, err := loader.LoadBuiltinRules()
	if err != nil {
		t.Fatalf("LoadBuiltinRules failed: %v", err)
	}
	if len(rules) == 0 {
		t.Fatal("expected embedded rules")
	}
	if err := ValidateRules(rules); err != nil {
		t.Fatalf("embedded rules invalid: %v", err)
	}

	rulesets, err := loader.LoadBuiltinRulesets()
	if err != nil {
		t.Fatalf("LoadBuiltinRulesets failed: %v", err)
	}
	known := make(map[string]bool)
	for _, r := range rules {
		known[r.ID] = true
	}
	for _, rs := range rulesets {
		if err := ValidateRuleset(rs, known); err != nil {
			t.Errorf("embedded ruleset invalid: %v", err)
		}
		if _, err := SelectRuleset(rules, rs); err != nil {
			t.Errorf("SelectRuleset(%s): %v", rs.ID, err)
		}
	}
}

func TestLoadRulesFile_Snort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.rules")
	data := `# local rules
alert tcp any any -> any 80 (msg:"passwd"; content:"/etc/passwd"; nocase; sid:1122; rev:1;)
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := NewLoader().LoadRulesFile(path)
	if err != nil {
		t.Fatalf("LoadRulesFile failed: %v", err)
	}
	if len(rules) != 1 || rules[0].SID != 1122 {
		t.Fatalf("unexpected rules: %+v", rules)
	}
}

func TestLoadRulesFile_Missing(t *testing.T) {
	if _, err := NewLoader().LoadRulesFile(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Error("expected error for missing file")
	}
}
