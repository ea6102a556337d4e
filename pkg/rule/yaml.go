package rule

// yamlPattern is one literal of a rule.
type yamlPattern struct {
	Content string `yaml:"content"`
	NoCase  bool   `yaml:"nocase,omitempty"`
}

// yamlRule is the intermediate struct for parsing the YAML rule format.
type yamlRule struct {
	Name             string        `yaml:"name"`
	ID               string        `yaml:"id"`
	SID              uint32        `yaml:"sid"`
	Severity         string        `yaml:"severity,omitempty"`
	Patterns         []yamlPattern `yaml:"patterns"`
	Description      string        `yaml:"description,omitempty"`
	Examples         []string      `yaml:"examples,omitempty"`
	NegativeExamples []string      `yaml:"negative_examples,omitempty"`
	References       []string      `yaml:"references,omitempty"`
	Categories       []string      `yaml:"categories,omitempty"`
}

// yamlRulesFile represents the top-level structure of a rules YAML file.
type yamlRulesFile struct {
	Rules []yamlRule `yaml:"rules"`
}

// yamlRuleset is the intermediate struct for parsing the YAML ruleset format.
type yamlRuleset struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	RuleIDs     []string `yaml:"include_rule_ids"`
}

// yamlRulesetsFile represents the top-level structure of a rulesets YAML file.
type yamlRulesetsFile struct {
	Rulesets []yamlRuleset `yaml:"rulesets"`
}
