// Package sanitize cleans user-supplied text before it is stored. Feedback
// input and responses are echoed back to MCP clients, so markup that could
// steer a model reading them is removed.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxTextLength caps stored feedback text, in bytes.
const MaxTextLength = 4000

// MaxNameLength caps agent names.
const MaxNameLength = 64

var (
	reTag             = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)
	reHeading         = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reRule            = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	reFence           = regexp.MustCompile("```+")
	reBlankLines      = regexp.MustCompile(`\n{3,}`)
	reRepeatedDash    = regexp.MustCompile(`-{2,}`)
	reRepeatedUnderSc = regexp.MustCompile(`_{2,}`)
)

// Text strips control characters (except newline and tab), XML/HTML tags,
// markdown headings, rules and code fences from s, collapses runs of blank
// lines and truncates to MaxTextLength.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = stripControl(s)
	s = reTag.ReplaceAllString(s, "")
	s = reHeading.ReplaceAllString(s, "- ")
	s = reRule.ReplaceAllString(s, "")
	s = reFence.ReplaceAllString(s, "`")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	if len(s) > MaxTextLength {
		s = truncate(s, MaxTextLength) + "..."
	}
	return s
}

// Name keeps the characters allowed in agent names ([A-Za-z0-9_-]),
// collapses repeated separators and truncates to MaxNameLength.
func Name(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	out := reRepeatedDash.ReplaceAllString(b.String(), "-")
	out = reRepeatedUnderSc.ReplaceAllString(out, "_")
	if len(out) > MaxNameLength {
		out = out[:MaxNameLength]
	}
	return out
}

// ValidName reports whether s is already a clean agent name.
func ValidName(s string) bool {
	return s != "" && Name(s) == s
}

func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	for n > 0 && n < len(s) && !utf8Start(s[n]) {
		n--
	}
	return s[:n]
}

func utf8Start(b byte) bool { return b&0xC0 != 0x80 }
