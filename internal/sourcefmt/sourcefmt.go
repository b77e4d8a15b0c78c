// Package sourcefmt decides which of the three wire formats a cleaned
// EXPLAIN source is in: a JSON document (top-level or embedded in
// surrounding text), a FORMAT YAML document, or the plain text form.
package sourcefmt

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Format is the detected wire format of a cleaned EXPLAIN source.
type Format int

const (
	// FormatText is PostgreSQL's default textual EXPLAIN output.
	FormatText Format = iota
	// FormatJSON is EXPLAIN (FORMAT JSON), as a top-level value or
	// embedded in surrounding text.
	FormatJSON
	// FormatYAML is EXPLAIN (FORMAT YAML), PostgreSQL's bracketless,
	// indentation-based form.
	FormatYAML
)

var bracketBlock = regexp.MustCompile(`(?s)^(\s*)([\[{])\s*\n(.*?\n)(\s*)([\]}])\s*$`)

var yamlPlanLine = regexp.MustCompile(`(?m)^\s*-\s+Plan\s*:`)

// Detect classifies the cleaned source and returns the substring that the
// matching parser should consume — for the embedded-bracket case this is
// the extracted JSON block, not the full surrounding document.
func Detect(source string) (Format, string) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return FormatText, source
	}

	if looksLikeJSONValue(trimmed) {
		return FormatJSON, trimmed
	}

	if block, ok := extractBracketed(source); ok {
		return FormatJSON, block
	}

	if yamlPlanLine.MatchString(source) {
		return FormatYAML, source
	}

	return FormatText, source
}

func looksLikeJSONValue(trimmed string) bool {
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case '{', '[':
	default:
		return false
	}
	var probe any
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return false
	}
	switch probe.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

// extractBracketed finds a bracketed JSON block embedded inside a larger
// textual document: the first line whose content (after a shared prefix
// P) is `[` or `{`, through the first subsequent line whose content is P
// followed by the matching `]`/`}`.
func extractBracketed(source string) (string, bool) {
	lines := strings.Split(source, "\n")
	openIdx := -1
	var prefix string
	var open, close byte
	for i, line := range lines {
		t := strings.TrimRight(line, " \t")
		trimmedLeft := strings.TrimLeft(t, " \t")
		if trimmedLeft == "[" || trimmedLeft == "{" {
			openIdx = i
			prefix = t[:len(t)-len(trimmedLeft)]
			if trimmedLeft == "[" {
				open, close = '[', ']'
			} else {
				open, close = '{', '}'
			}
			break
		}
	}
	if openIdx == -1 {
		return "", false
	}
	_ = open
	for i := openIdx + 1; i < len(lines); i++ {
		t := lines[i]
		candidate := strings.TrimRight(strings.TrimPrefix(t, prefix), " \t")
		if t == prefix+string(close) || candidate == string(close) {
			block := strings.Join(lines[openIdx:i+1], "\n")
			return block, true
		}
	}
	return "", false
}
