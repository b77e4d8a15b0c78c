// Package normalize strips the framings PostgreSQL clients wrap EXPLAIN
// output in — psql's table borders, copy/paste quoting, pgAdmin's `+`
// continuations, locale-agnostic row-count footers — so that only the
// plan body remains. It never trims significant leading whitespace: depth
// inference in internal/textplan depends on it.
package normalize

import (
	"regexp"
	"strings"
)

var (
	frameLine  = regexp.MustCompile(`^([│║|])(.*)([│║|])$`)
	rulerLine  = regexp.MustCompile(`^[\s]*([+\-=─━═╔╗╚╝├┤┌┐└┘]+)[\s]*$`)
	quotedLine = regexp.MustCompile(`^"(.*)"$|^'(.*)'$`)
	queryPlanHeader = regexp.MustCompile(`^\s*QUERY PLAN\s*$`)
	// Row-count footer: "(8 rows)", "(1 row)", "(8 lignes)" — locale
	// agnostic, matches any run of letters after the digits.
	rowFooter = regexp.MustCompile(`^\s*\(\d+\s+\p{L}+\)\s*$`)
)

// Cleanup strips framings line-by-line and collapses continuation glyphs.
// It is idempotent: Cleanup(Cleanup(s)) == Cleanup(s).
func Cleanup(source string) string {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	// Drop `+` and `↵` continuation markers, each leaving a single plain
	// newline, before framing/footer stripping, so a trailing marker
	// doesn't stop a footer or ruler line from matching.
	source = collapseContinuations(source)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = stripFrame(line)
		if rulerLine.MatchString(line) {
			continue
		}
		if queryPlanHeader.MatchString(line) {
			continue
		}
		if rowFooter.MatchString(line) {
			continue
		}
		line = stripQuotes(line)
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func collapseContinuations(s string) string {
	s = strings.ReplaceAll(s, "↵\n", "\n")
	s = strings.ReplaceAll(s, "↵", "\n")
	// A trailing `+` immediately before a newline marks a pgAdmin/psql
	// wrapped continuation; drop the marker and keep the line break.
	lines := strings.Split(s, "\n")
	var b strings.Builder
	for i, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.HasSuffix(trimmed, "+") && i != len(lines)-1 {
			b.WriteString(strings.TrimSuffix(trimmed, "+"))
			b.WriteByte('\n')
			continue
		}
		b.WriteString(line)
		if i != len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func stripFrame(line string) string {
	if m := frameLine.FindStringSubmatch(line); m != nil {
		return m[2]
	}
	return line
}

func stripQuotes(line string) string {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) >= 2 {
		if (trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"') ||
			(trimmed[0] == '\'' && trimmed[len(trimmed)-1] == '\'') {
			// Preserve leading indentation: only the quote characters are
			// removed, not the surrounding whitespace that encodes depth.
			lead := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
			inner := trimmed[1 : len(trimmed)-1]
			return lead + inner
		}
	}
	return line
}
