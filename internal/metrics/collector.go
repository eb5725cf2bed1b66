package metrics

import (
	"github.com/ConfabulousDev/confab-insights/internal/eventlog"
)

// Collector accumulates one concern during the single pass over the log
type Collector interface {
	// Collect is called for each event, oldest first.
	Collect(ev eventlog.Event)

	// Finalize writes the collector's results into m.
	Finalize(m *SessionMetrics)
}

// Run drains src once, invoking every collector for each event
func Run(src EventSource, collectors ...Collector) SessionMetrics {
	m := Zero()
	for {
		ev, ok := src.Next()
		if !ok {
			break
		}
		for _, c := range collectors {
			c.Collect(ev)
		}
	}
	for _, c := range collectors {
		c.Finalize(&m)
	}
	return m
}
