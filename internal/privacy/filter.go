// Package privacy sanitizes everything that may leave the process or be
// persisted: file paths, code spans and credential-shaped strings.
package privacy

import (
	"regexp"
	"strings"

	"github.com/ConfabulousDev/confab-insights/internal/config"
	"github.com/ConfabulousDev/confab-insights/internal/metrics"
	"github.com/ConfabulousDev/confab-insights/internal/sampler"
)

const (
	// PathPlaceholder replaces stripped file paths
	PathPlaceholder = "[PATH]"

	// CodePlaceholder replaces stripped code spans
	CodePlaceholder = "[code omitted]"

	// charsPerToken converts max_context_tokens into a character budget
	charsPerToken = 4

	// maxStoredPaths bounds files_modified in a persisted record
	maxStoredPaths = 20

	// minInlineCodeChars is the shortest inline backtick span treated as code
	minInlineCodeChars = 40
)

// pathPrefix is anything but a path character, so markdown emphasis and
// backticks count as delimiters. RE2 has no lookbehind so it is captured
// and written back.
const pathPrefix = `(^|[^A-Za-z0-9._~/\\-])`

// pathStop ends an unstructured path token
const pathStop = `\s"'<>()\[\]{},;*|` + "`"

var pathPatterns = []*regexp.Regexp{
	regexp.MustCompile(pathPrefix + `(~/[^` + pathStop + `]*)`),
	regexp.MustCompile(pathPrefix + `(/[A-Za-z0-9._@+\-]+(?:/[A-Za-z0-9._@+\-]*)*)`),
	regexp.MustCompile(pathPrefix + `([A-Za-z]:\\[^` + pathStop + `]+)`),
	regexp.MustCompile(pathPrefix + `((?:\.{1,2}/)?[A-Za-z0-9_.\-]+(?:/[A-Za-z0-9_.\-]+)+\.[A-Za-z0-9]{1,8})\b`),
}

var (
	fencedCode   = regexp.MustCompile("(?s)(```|~~~).*?(?:```|~~~|$)")
	inlineCode   = regexp.MustCompile("`[^`\n]+`")
	blankRunning = regexp.MustCompile(`\n{3,}`)
)

// Filter applies the configured privacy policy
type Filter struct {
	level      config.PrivacyLevel
	stripPaths bool
	stripCode  bool
	redact     bool
	maxChars   int
	redactor   *Redactor
}

// Sanitized is the filter's output
type Sanitized struct {
	Metrics    metrics.SessionMetrics
	Sample     string
	Redactions map[string]int
}

// NewFilter builds a filter for cfg. Sharing scopes wider than self
// always strip paths and redact, whatever the individual flags say.
func NewFilter(cfg config.Privacy) (*Filter, error) {
	redactor, err := NewRedactor(DefaultPatterns())
	if err != nil {
		return nil, err
	}
	shared := cfg.Level == config.LevelTeam || cfg.Level == config.LevelPublic
	return &Filter{
		level:      cfg.Level,
		stripPaths: !cfg.IncludeFilePaths || shared,
		stripCode:  !cfg.IncludeCodeSnippets,
		redact:     cfg.RedactSensitive || shared,
		maxChars:   cfg.MaxContextTokens * charsPerToken,
		redactor:   redactor,
	}, nil
}

// Level is the privacy level recorded on every insight
func (f *Filter) Level() config.PrivacyLevel { return f.level }

// MaxChars is the character budget for anything sent to the provider;
// zero means unbounded.
func (f *Filter) MaxChars() int { return f.maxChars }

// AllowsPaths reports whether literal file paths survive filtering
func (f *Filter) AllowsPaths() bool { return !f.stripPaths }

// Apply sanitizes metrics and the conversation sample, in order: paths,
// code, credentials, then the context size cap.
func (f *Filter) Apply(m metrics.SessionMetrics, sample string) Sanitized {
	m.FilesRead = nil
	if f.stripPaths {
		m.FilesModified = nil
	} else {
		if len(m.FilesModified) > maxStoredPaths {
			m.FilesModified = m.FilesModified[:maxStoredPaths]
		}
		if f.redact {
			redacted := make([]string, len(m.FilesModified))
			for i, p := range m.FilesModified {
				redacted[i] = f.redactor.Redact(p)
			}
			m.FilesModified = redacted
		}
	}

	if f.stripPaths {
		sample = StripPaths(sample)
	}
	if f.stripCode {
		sample = StripCode(sample)
	}
	if f.redact {
		sample = f.redactor.Redact(sample)
	}
	if f.maxChars > 0 {
		sample = sampler.TruncateWords(sample, f.maxChars, "")
	}

	return Sanitized{
		Metrics:    m,
		Sample:     sample,
		Redactions: CountRedactions(sample),
	}
}

// Text sanitizes a derived string (provider output) with the same rules
// as the sample, except the size cap.
func (f *Filter) Text(s string) string {
	if f.stripPaths {
		s = StripPaths(s)
	}
	if f.stripCode {
		s = StripCode(s)
	}
	if f.redact {
		s = f.redactor.Redact(s)
	}
	return s
}

// Texts sanitizes each string of list
func (f *Filter) Texts(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = f.Text(s)
	}
	return out
}

// StripPaths replaces absolute, home-relative, Windows and relative
// multi-segment file paths with [PATH]. URLs are left alone.
func StripPaths(s string) string {
	for _, re := range pathPatterns {
		s = re.ReplaceAllString(s, "${1}"+PathPlaceholder)
	}
	return s
}

// StripCode replaces fenced blocks (terminated or not) and long inline
// code spans with a placeholder.
func StripCode(s string) string {
	s = fencedCode.ReplaceAllLiteralString(s, CodePlaceholder)
	s = inlineCode.ReplaceAllStringFunc(s, func(span string) string {
		if len(span)-2 < minInlineCodeChars {
			return span
		}
		return CodePlaceholder
	})
	return blankRunning.ReplaceAllString(strings.TrimSpace(s), "\n\n")
}
