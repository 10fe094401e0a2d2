package mailer

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer is the default TagStripper. It removes every tag with a strict
// bluemonday policy and turns the result into readable plain text.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer creates a sanitizer with the strict policy.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// NewSanitizerWithPolicy creates a sanitizer with a custom policy.
// A nil policy falls back to the strict policy.
func NewSanitizerWithPolicy(policy *bluemonday.Policy) *Sanitizer {
	if policy == nil {
		return NewSanitizer()
	}
	return &Sanitizer{policy: policy}
}

// StripTags removes markup, unescapes entities, trims trailing spaces
// and collapses runs of blank lines.
func (s *Sanitizer) StripTags(htmlBody string) string {
	text := html.UnescapeString(s.policy.Sanitize(htmlBody))

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
