package rule

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// ParseSnort reads Snort-style rule lines such as
//
//	alert tcp any any -> any 80 (msg:"passwd access"; content:"/etc/passwd"; nocase; sid:1122;)
//
// Only the literal options are used: msg, content, nocase, sid, classtype
// and reference. Rules without content or sid are rejected. Negated
// content is not supported.
func ParseSnort(data []byte) ([]*types.Rule, error) {
	var rules []*types.Rule
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := parseSnortLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rules = append(rules, r)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func parseSnortLine(line string) (*types.Rule, error) {
	open := strings.IndexByte(line, '(')
	end := strings.LastIndexByte(line, ')')
	if open < 0 || end < open {
		return nil, fmt.Errorf("missing option block")
	}

	r := &types.Rule{}
	for _, opt := range splitOptions(line[open+1 : end]) {
		key, value, _ := strings.Cut(opt, ":")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "msg":
			r.Name = unescape(unquote(value))
		case "content":
			if strings.HasPrefix(value, "!") {
				return nil, fmt.Errorf("negated content is not supported")
			}
			content, err := DecodeContent(unquote(value))
			if err != nil {
				return nil, err
			}
			r.Patterns = append(r.Patterns, types.Literal{Content: content})
		case "nocase":
			if len(r.Patterns) == 0 {
				return nil, fmt.Errorf("nocase before any content")
			}
			r.Patterns[len(r.Patterns)-1].NoCase = true
		case "sid":
			sid, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid sid %q: %w", value, err)
			}
			r.SID = uint32(sid)
		case "classtype":
			r.Categories = append(r.Categories, value)
		case "reference":
			r.References = append(r.References, value)
		}
	}

	if r.SID == 0 {
		return nil, fmt.Errorf("rule has no sid")
	}
	if len(r.Patterns) == 0 {
		return nil, fmt.Errorf("rule %d has no content", r.SID)
	}
	r.ID = fmt.Sprintf("snort.%d", r.SID)
	if r.Name == "" {
		r.Name = r.ID
	}
	r.StructuralID = r.ComputeStructuralID()
	return r, nil
}

// splitOptions splits on semicolons outside double quotes.
func splitOptions(s string) []string {
	var opts []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			cur.WriteByte(c)
			i++
			cur.WriteByte(s[i])
			continue
		case c == '"':
			inQuote = !inQuote
		case c == ';' && !inQuote:
			if opt := strings.TrimSpace(cur.String()); opt != "" {
				opts = append(opts, opt)
			}
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	if opt := strings.TrimSpace(cur.String()); opt != "" {
		opts = append(opts, opt)
	}
	return opts
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
