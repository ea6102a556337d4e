package sarif

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// SARIF 2.1.0 constants
const (
	SchemaURI   = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version     = "2.1.0"
	ToolName    = "sieve"
	ToolVersion = "1.1.0"
	InfoURI     = "https://github.com/praetorian-inc/sieve"
)

// Report is the top-level SARIF report structure
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`

	rules map[string]*types.Rule
}

// Run represents a single invocation of the tool
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains tool metadata
type Driver struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	InformationURI string `json:"informationUri,omitempty"`
	Rules          []Rule `json:"rules,omitempty"`
}

// Rule represents a detection rule
type Rule struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	ShortDescription     ShortDescription `json:"shortDescription"`
	HelpURI              string           `json:"helpUri,omitempty"`
	DefaultConfiguration Configuration    `json:"defaultConfiguration"`
	Properties           RuleProperties   `json:"properties"`
}

// Configuration holds a rule's default reporting level.
type Configuration struct {
	Level string `json:"level"`
}

// RuleProperties carries sieve-specific rule metadata.
type RuleProperties struct {
	SID      uint32   `json:"sid"`
	Severity string   `json:"severity,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// ShortDescription contains rule description text
type ShortDescription struct {
	Text string `json:"text"`
}

// Result represents a single finding
type Result struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           int               `json:"ruleIndex"`
	Level               string            `json:"level"`
	Message             Message           `json:"message"`
	Locations           []Location        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          ResultProperties  `json:"properties"`
}

// ResultProperties carries the literal that matched.
type ResultProperties struct {
	SID        uint32 `json:"sid"`
	Pattern    string `json:"pattern"`
	PatternHex string `json:"patternHex,omitempty"`
	NoCase     bool   `json:"nocase,omitempty"`
	BlobID     string `json:"blobId"`
}

// Message contains the result message
type Message struct {
	Text string `json:"text"`
}

// Location describes where a result was found
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation specifies file location
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

// ArtifactLocation identifies the file
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region specifies the line/column range and byte span
type Region struct {
	StartLine   int     `json:"startLine"`
	StartColumn int     `json:"startColumn"`
	EndLine     int     `json:"endLine"`
	EndColumn   int     `json:"endColumn"`
	ByteOffset  int64   `json:"byteOffset"`
	ByteLength  int64   `json:"byteLength"`
	Snippet     Snippet `json:"snippet,omitempty"`
}

// Snippet contains the matched text
type Snippet struct {
	Text string `json:"text"`
}

// NewReport creates a new SARIF report with initialized structure
func NewReport() *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:           ToolName,
						Version:        ToolVersion,
						InformationURI: InfoURI,
						Rules:          []Rule{},
					},
				},
				Results: []Result{},
			},
		},
		rules: make(map[string]*types.Rule),
	}
}

// AddRule adds a detection rule to the report. Adding a rule ID twice is a
// no-op.
func (r *Report) AddRule(rule *types.Rule) {
	if _, ok := r.rules[rule.ID]; ok {
		return
	}
	r.rules[rule.ID] = rule

	sarifRule := Rule{
		ID:   rule.ID,
		Name: rule.Name,
		ShortDescription: ShortDescription{
			Text: rule.Description,
		},
		DefaultConfiguration: Configuration{Level: Level(rule.Severity)},
		Properties: RuleProperties{
			SID:      rule.SID,
			Severity: rule.Severity,
			Tags:     rule.Categories,
		},
	}
	if sarifRule.ShortDescription.Text == "" {
		sarifRule.ShortDescription.Text = rule.Name
	}

	// Add first reference as helpUri if available
	if len(rule.References) > 0 {
		sarifRule.HelpURI = rule.References[0]
	}

	r.Runs[0].Tool.Driver.Rules = append(r.Runs[0].Tool.Driver.Rules, sarifRule)
}

// AddResult adds a finding result to the report
func (r *Report) AddResult(match *types.Match, filePath string) {
	region := Region{
		StartLine:   match.Location.Source.Start.Line,
		StartColumn: match.Location.Source.Start.Column,
		EndLine:     match.Location.Source.End.Line,
		EndColumn:   match.Location.Source.End.Column,
		ByteOffset:  match.Location.Offset.Start,
		ByteLength:  match.Location.Offset.Len(),
	}
	if len(match.Snippet.Matching) > 0 {
		region.Snippet = Snippet{Text: string(match.Snippet.Matching)}
	}

	level := "warning"
	if rule, ok := r.rules[match.RuleID]; ok {
		level = Level(rule.Severity)
	}

	result := Result{
		RuleID:    match.RuleID,
		RuleIndex: r.ruleIndex(match.RuleID),
		Level:     level,
		Message: Message{
			Text: message(match),
		},
		Locations: []Location{
			{
				PhysicalLocation: PhysicalLocation{
					ArtifactLocation: ArtifactLocation{URI: formatFileURI(filePath)},
					Region:           region,
				},
			},
		},
		Properties: ResultProperties{
			SID:     match.SID,
			Pattern: string(match.Pattern),
			NoCase:  match.NoCase,
			BlobID:  match.BlobID.Hex(),
		},
	}
	if !utf8.Valid(match.Pattern) {
		result.Properties.PatternHex = hex.EncodeToString(match.Pattern)
	}
	if match.FindingID != "" {
		result.PartialFingerprints = map[string]string{"findingId/v1": match.FindingID}
	}

	r.Runs[0].Results = append(r.Runs[0].Results, result)
}

// ToJSON serializes the report to JSON bytes
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Write serializes the report to w.
func (r *Report) Write(w io.Writer) error {
	data, err := r.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal sarif: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// Level maps a rule severity to a SARIF result level.
func Level(severity string) string {
	switch strings.ToLower(severity) {
	case "critical", "high":
		return "error"
	case "info":
		return "note"
	default:
		return "warning"
	}
}

func (r *Report) ruleIndex(id string) int {
	for i, rule := range r.Runs[0].Tool.Driver.Rules {
		if rule.ID == id {
			return i
		}
	}
	return -1
}

func message(m *types.Match) string {
	name := m.RuleName
	if name == "" {
		name = m.RuleID
	}
	if m.SID == 0 {
		return name
	}
	return fmt.Sprintf("%s (sid %d)", name, m.SID)
}

// formatFileURI converts a file path to SARIF URI format
// Absolute paths get file:// prefix, relative paths stay as-is
func formatFileURI(path string) string {
	if filepath.IsAbs(path) {
		path = filepath.ToSlash(path)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	return filepath.ToSlash(path)
}
