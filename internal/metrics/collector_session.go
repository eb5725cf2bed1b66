package metrics

import (
	"time"

	"github.com/ConfabulousDev/confab-insights/internal/eventlog"
)

// TimingCollector derives the session span. Explicit session:start and
// session:end markers win over the first and last event timestamps.
type TimingCollector struct {
	first, last        *time.Time
	markStart, markEnd *time.Time
}

// NewTimingCollector creates a new timing collector.
func NewTimingCollector() *TimingCollector {
	return &TimingCollector{}
}

func (c *TimingCollector) Collect(ev eventlog.Event) {
	if ev.Timestamp.IsZero() {
		return
	}
	ts := ev.Timestamp
	if c.first == nil || ts.Before(*c.first) {
		c.first = &ts
	}
	if c.last == nil || ts.After(*c.last) {
		c.last = &ts
	}
	switch ev.Kind {
	case eventlog.KindSessionStart:
		if c.markStart == nil {
			c.markStart = &ts
		}
	case eventlog.KindSessionEnd:
		c.markEnd = &ts
	}
}

func (c *TimingCollector) Finalize(m *SessionMetrics) {
	start, end := c.first, c.last
	if c.markStart != nil {
		start = c.markStart
	}
	if c.markEnd != nil {
		end = c.markEnd
	}
	m.setSpan(start, end)
}

// TurnsCollector counts user turns. Logs without prompt:submit boundaries
// fall back to counting completed prompts.
type TurnsCollector struct {
	submitted int
	completed int
}

// NewTurnsCollector creates a new turns collector.
func NewTurnsCollector() *TurnsCollector {
	return &TurnsCollector{}
}

func (c *TurnsCollector) Collect(ev eventlog.Event) {
	switch ev.Kind {
	case eventlog.KindPromptSubmit:
		c.submitted++
	case eventlog.KindPromptComplete:
		c.completed++
	}
}

func (c *TurnsCollector) Finalize(m *SessionMetrics) {
	m.TurnCount = c.submitted
	if m.TurnCount == 0 {
		m.TurnCount = c.completed
	}
}
