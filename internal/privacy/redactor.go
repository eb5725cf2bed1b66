package privacy

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a single credential pattern
type Pattern struct {
	Name         string `json:"name" yaml:"name"`
	Pattern      string `json:"pattern" yaml:"pattern"`
	Type         string `json:"type" yaml:"type"`
	CaptureGroup int    `json:"capture_group,omitempty" yaml:"capture_group,omitempty"`
}

// Redactor replaces credential-shaped strings with [REDACTED:TYPE] markers
type Redactor struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	regex        *regexp.Regexp
	marker       string
	captureGroup int
}

// NewRedactor compiles patterns
func NewRedactor(patterns []Pattern) (*Redactor, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern '%s': %w", p.Name, err)
		}
		if p.CaptureGroup > regex.NumSubexp() {
			return nil, fmt.Errorf("pattern '%s' has no capture group %d", p.Name, p.CaptureGroup)
		}
		compiled = append(compiled, compiledPattern{
			regex:        regex,
			marker:       fmt.Sprintf("[REDACTED:%s]", strings.ToUpper(p.Type)),
			captureGroup: p.CaptureGroup,
		})
	}
	return &Redactor{patterns: compiled}, nil
}

// Redact applies every pattern in order
func (r *Redactor) Redact(input string) string {
	result := input
	for _, p := range r.patterns {
		if p.captureGroup > 0 {
			result = p.redactGroup(result)
		} else {
			result = p.regex.ReplaceAllLiteralString(result, p.marker)
		}
	}
	return result
}

// redactGroup replaces only the capture group, keeping the surrounding
// match (e.g. the scheme and host of a connection string) readable.
func (p compiledPattern) redactGroup(input string) string {
	matches := p.regex.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[2*p.captureGroup], m[2*p.captureGroup+1]
		if start < 0 {
			continue
		}
		b.WriteString(input[last:start])
		b.WriteString(p.marker)
		last = end
	}
	b.WriteString(input[last:])
	return b.String()
}

var redactionMarker = regexp.MustCompile(`\[REDACTED:([A-Z_]+)\]`)

// CountRedactions counts redaction markers in text by type
func CountRedactions(text string) map[string]int {
	counts := make(map[string]int)
	for _, m := range redactionMarker.FindAllStringSubmatch(text, -1) {
		counts[m[1]]++
	}
	return counts
}
