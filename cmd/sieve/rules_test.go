package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRulesList(t *testing.T) {
	// Create a buffer to capture output
	var buf bytes.Buffer

	// Create a test command with our buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	// Reset flags for test
	rulesPath = ""
	outputFormat = "table"

	// Execute rules list command (using builtin rules)
	err := runRulesList(cmd, []string{})
	require.NoError(t, err)

	// Verify output contains rule table headers
	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "SID")
	assert.Contains(t, output, "sieve.cred.1")
}

func TestRunRulesListJSON(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	rulesPath = writeRules(t, t.TempDir())
	outputFormat = "json"

	err := runRulesList(cmd, []string{})
	require.NoError(t, err)

	var rules []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "test.1", rules[0]["ID"])
}

func TestRunRulesCheck(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	// Builtin rules must pass their own examples.
	rulesPath = ""
	require.NoError(t, runRulesCheck(cmd, nil))
	assert.Contains(t, buf.String(), "rules (")
	assert.Contains(t, buf.String(), "OK")
}

func TestRunRulesCheck_Failure(t *testing.T) {
	dir := t.TempDir()
	bad := `rules:
  - id: bad.1
    name: Bad Example
    sid: 1
    patterns:
      - content: "needle"
    examples:
      - "haystack"
`
	rulesPath = filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(rulesPath, []byte(bad), 0644))

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	err := runRulesCheck(cmd, nil)
	assert.ErrorContains(t, err, "does not match")
}
