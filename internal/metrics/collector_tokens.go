package metrics

import "github.com/ConfabulousDev/confab-insights/internal/eventlog"

// TokensCollector sums provider usage recorded during the session
type TokensCollector struct {
	Requests     int
	InputTokens  int64
	OutputTokens int64
	Model        string
}

// NewTokensCollector creates a new tokens collector.
func NewTokensCollector() *TokensCollector {
	return &TokensCollector{}
}

func (c *TokensCollector) Collect(ev eventlog.Event) {
	if ev.Kind != eventlog.KindLLMResponse {
		return
	}
	c.Requests++
	c.InputTokens += ev.InputTokens
	c.OutputTokens += ev.OutputTokens
	// First model seen wins
	if c.Model == "" {
		c.Model = ev.Model
	}
}

func (c *TokensCollector) Finalize(m *SessionMetrics) {
	m.LLMRequests = c.Requests
	m.TotalInputTokens = c.InputTokens
	m.TotalOutputTokens = c.OutputTokens
	m.TotalTokens = c.InputTokens + c.OutputTokens
	m.ModelUsed = c.Model
}
