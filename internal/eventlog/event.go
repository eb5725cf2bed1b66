package eventlog

import (
	"errors"
	"time"
)

// ErrSourceUnavailable is wrapped by every failure to open or read a session log
var ErrSourceUnavailable = errors.New("session log unavailable")

// Kind is the normalized event type
type Kind string

const (
	KindSessionStart   Kind = "session:start"
	KindSessionEnd     Kind = "session:end"
	KindPromptSubmit   Kind = "prompt:submit"
	KindPromptComplete Kind = "prompt:complete"
	KindToolPost       Kind = "tool:post"
	KindToolError      Kind = "tool:error"
	KindLLMResponse    Kind = "llm:response"
	KindLLMError       Kind = "llm:error"
)

// LevelError marks a log line as an error regardless of its kind
const LevelError = "ERROR"

// Event is one normalized entry of a session log. Only the fields relevant
// to Kind are populated.
type Event struct {
	Kind      Kind
	Timestamp time.Time // zero when the line carried none
	Level     string

	Tool     string // tool:post, tool:error
	FilePath string // tool:post with a file target

	InputTokens  int64 // llm:response
	OutputTokens int64
	Model        string

	Prompt   string // prompt:submit, prompt:complete
	Response string // prompt:complete
}

// IsError reports whether the event counts toward errors_encountered
func (e Event) IsError() bool {
	return e.Kind == KindToolError || e.Kind == KindLLMError || e.Level == LevelError
}
