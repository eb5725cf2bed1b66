package metrics

import (
	"time"

	"github.com/ConfabulousDev/confab-insights/internal/eventlog"
)

// SessionMetrics is the quantitative half of an insight record. It is
// always present, zero-filled when the log could not be read.
type SessionMetrics struct {
	DurationSeconds    float64        `json:"duration_seconds"`
	TurnCount          int            `json:"turn_count"`
	ToolUsage          map[string]int `json:"tool_usage"`
	FilesReadCount     int            `json:"files_read_count"`
	FilesModifiedCount int            `json:"files_modified_count"`
	ErrorsEncountered  int            `json:"errors_encountered"`
	LLMRequests        int            `json:"llm_requests"`
	TotalTokens        int64          `json:"total_tokens"`

	TotalInputTokens  int64      `json:"total_input_tokens"`
	TotalOutputTokens int64      `json:"total_output_tokens"`
	ModelUsed         string     `json:"model_used,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`

	// FilesModified is persisted only when file paths are allowed, and
	// then only as a bounded list. FilesRead never leaves memory.
	FilesModified []string `json:"files_modified,omitempty"`
	FilesRead     []string `json:"-"`
}

// Zero returns the degraded metrics used when the log is unavailable
func Zero() SessionMetrics {
	return SessionMetrics{ToolUsage: map[string]int{}}
}

// Hints are facts the host already knows. Non-zero hints take precedence
// over what the log implies.
type Hints struct {
	TurnCount int
	StartedAt *time.Time
	EndedAt   *time.Time
	Model     string
}

// EventSource yields events oldest-first
type EventSource interface {
	Next() (eventlog.Event, bool)
}

// Extract runs the default collectors over src in a single pass
func Extract(src EventSource, hints Hints) SessionMetrics {
	m := Run(src,
		NewToolsCollector(),
		NewFilesCollector(),
		NewTokensCollector(),
		NewErrorsCollector(),
		NewTimingCollector(),
		NewTurnsCollector(),
	)
	m.applyHints(hints)
	return m
}

func (m *SessionMetrics) applyHints(h Hints) {
	if h.TurnCount > 0 {
		m.TurnCount = h.TurnCount
	}
	if h.Model != "" && m.ModelUsed == "" {
		m.ModelUsed = h.Model
	}
	start, end := m.StartedAt, m.EndedAt
	if h.StartedAt != nil {
		start = h.StartedAt
	}
	if h.EndedAt != nil {
		end = h.EndedAt
	}
	m.setSpan(start, end)
}

func (m *SessionMetrics) setSpan(start, end *time.Time) {
	m.StartedAt, m.EndedAt = start, end
	m.DurationSeconds = 0
	if start != nil && end != nil && end.After(*start) {
		m.DurationSeconds = end.Sub(*start).Seconds()
	}
}

// Duration returns DurationSeconds as a time.Duration
func (m SessionMetrics) Duration() time.Duration {
	return time.Duration(m.DurationSeconds * float64(time.Second))
}

// TotalToolCalls sums ToolUsage
func (m SessionMetrics) TotalToolCalls() int {
	total := 0
	for _, n := range m.ToolUsage {
		total += n
	}
	return total
}
