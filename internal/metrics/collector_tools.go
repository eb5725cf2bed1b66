package metrics

import "github.com/ConfabulousDev/confab-insights/internal/eventlog"

// ToolsCollector counts tool invocations by name
type ToolsCollector struct {
	ToolBreakdown map[string]int
}

// NewToolsCollector creates a new tools collector.
func NewToolsCollector() *ToolsCollector {
	return &ToolsCollector{ToolBreakdown: make(map[string]int)}
}

func (c *ToolsCollector) Collect(ev eventlog.Event) {
	if ev.Kind == eventlog.KindToolPost && ev.Tool != "" {
		c.ToolBreakdown[ev.Tool]++
	}
}

func (c *ToolsCollector) Finalize(m *SessionMetrics) {
	m.ToolUsage = c.ToolBreakdown
}

// ErrorsCollector counts tool and provider errors
type ErrorsCollector struct {
	Count int
}

// NewErrorsCollector creates a new errors collector.
func NewErrorsCollector() *ErrorsCollector {
	return &ErrorsCollector{}
}

func (c *ErrorsCollector) Collect(ev eventlog.Event) {
	if ev.IsError() {
		c.Count++
	}
}

func (c *ErrorsCollector) Finalize(m *SessionMetrics) {
	m.ErrorsEncountered = c.Count
}
