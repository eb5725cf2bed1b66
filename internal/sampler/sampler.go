// Package sampler builds a bounded, representative excerpt of a
// conversation: the opening turns, the most recent turns, and a few
// evenly spaced turns from the middle.
package sampler

import (
	"fmt"
	"strings"

	"github.com/ConfabulousDev/confab-insights/internal/eventlog"
)

const (
	headerOpening = "=== Opening ==="
	headerMiddle  = "=== Middle (sampled) ==="
	headerRecent  = "=== Recent ==="

	// NoContent is returned for an empty transcript
	NoContent = "[No conversation content available]"

	maxPerTurnChars   = 400
	maxMiddleTurnChar = 300
)

// Options bound the excerpt
type Options struct {
	MaxChars      int // hard cap on the whole excerpt
	OpeningTurns  int // first N turns
	RecentTurns   int // last M turns
	MiddleSamples int // K evenly spaced turns between them
	PerTurnChars  int // 0 means min(400, MaxChars/4)
}

// DefaultOptions matches the built-in configuration
func DefaultOptions() Options {
	return Options{MaxChars: 8000, OpeningTurns: 4, RecentTurns: 6, MiddleSamples: 3}
}

func (o Options) perTurn() int {
	if o.PerTurnChars > 0 {
		return o.PerTurnChars
	}
	return min(maxPerTurnChars, o.MaxChars/4)
}

// section is a header plus rendered turn lines in chronological order
type section struct {
	header string
	lines  []string
}

func (s section) size() int {
	if len(s.lines) == 0 {
		return 0
	}
	n := len(s.header) + 1
	for _, l := range s.lines {
		n += len(l) + 1
	}
	return n
}

func (s section) render(b *strings.Builder) {
	if len(s.lines) == 0 {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(s.header)
	for _, l := range s.lines {
		b.WriteString("\n")
		b.WriteString(l)
	}
}

// Sample renders turns into an excerpt no longer than opts.MaxChars bytes
// that never ends in the middle of a word. When the budget is exceeded,
// middle samples go first, then opening turns, oldest first; recent turns
// are kept longest.
func Sample(turns []eventlog.Turn, opts Options) string {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultOptions().MaxChars
	}
	if len(turns) == 0 {
		return TruncateWords(NoContent, opts.MaxChars, "")
	}

	n := len(turns)
	openEnd := min(opts.OpeningTurns, n)
	recentStart := max(openEnd, n-opts.RecentTurns)

	perTurn := opts.perTurn()
	middleLimit := min(maxMiddleTurnChar, perTurn)

	opening := section{header: headerOpening}
	for _, t := range turns[:openEnd] {
		opening.lines = append(opening.lines, renderTurn(t, perTurn))
	}

	middle := section{header: headerMiddle}
	for _, i := range middleIndices(openEnd, recentStart, opts.MiddleSamples) {
		middle.lines = append(middle.lines, renderTurn(turns[i], middleLimit))
	}

	recent := section{header: headerRecent}
	for _, t := range turns[recentStart:] {
		recent.lines = append(recent.lines, renderTurn(t, perTurn))
	}

	footer := fmt.Sprintf("[Total: %d messages]", n)

	sections := []*section{&opening, &middle, &recent}
	total := func() int {
		size := len(footer)
		for _, s := range sections {
			size += s.size()
		}
		return size
	}

	// Cut least-recent context first
	for _, s := range []*section{&middle, &opening, &recent} {
		for total() > opts.MaxChars && len(s.lines) > 0 {
			if s == &recent && len(s.lines) == 1 {
				break
			}
			s.lines = s.lines[1:]
		}
	}

	var b strings.Builder
	for _, s := range sections {
		s.render(&b)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(footer)

	return TruncateWords(b.String(), opts.MaxChars, "")
}

// middleIndices picks k evenly spaced indices in [lo, hi)
func middleIndices(lo, hi, k int) []int {
	span := hi - lo
	if span <= 0 || k <= 0 {
		return nil
	}
	if k >= span {
		idx := make([]int, span)
		for i := range idx {
			idx[i] = lo + i
		}
		return idx
	}
	idx := make([]int, 0, k)
	for i := 1; i <= k; i++ {
		j := lo + i*span/(k+1)
		if len(idx) > 0 && idx[len(idx)-1] == j {
			continue
		}
		idx = append(idx, j)
	}
	return idx
}

func renderTurn(t eventlog.Turn, limit int) string {
	text := strings.Join(strings.Fields(t.Text), " ")
	text = TruncateWords(text, limit, "...")
	if text == "" {
		return fmt.Sprintf("[%s]:", t.Role)
	}
	return fmt.Sprintf("[%s]: %s", t.Role, text)
}
