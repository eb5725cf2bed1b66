package pipeline

import (
	"fmt"
	"time"

	"github.com/ConfabulousDev/confab-insights/internal/eventlog"
	"github.com/ConfabulousDev/confab-insights/internal/metrics"
	"github.com/ConfabulousDev/confab-insights/internal/store"
	"github.com/ConfabulousDev/confab-insights/internal/types"
)

// Signal identifies a session to analyze and carries whatever the host
// already knows about it.
type Signal struct {
	SessionID      string     `json:"session_id"`
	SessionDir     string     `json:"session_dir,omitempty"`
	TranscriptPath string     `json:"transcript_path,omitempty"`
	TurnCount      int        `json:"turn_count,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// SignalFromHook converts a session-end hook payload
func SignalFromHook(in *types.HookInput) Signal {
	return Signal{
		SessionID:      in.SessionID,
		SessionDir:     in.SessionDir,
		TranscriptPath: in.TranscriptPath,
		TurnCount:      in.TurnCount,
		StartedAt:      in.StartedAt,
		EndedAt:        in.EndedAt,
		Reason:         in.Reason,
	}
}

// Validate checks that the signal names a storable session and a log
func (s Signal) Validate() error {
	if err := store.ValidateSessionID(s.SessionID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignal, err)
	}
	if s.SessionDir == "" && s.TranscriptPath == "" {
		return fmt.Errorf("%w: no session_dir or transcript_path", ErrInvalidSignal)
	}
	return nil
}

// Source opens a handle to the session's logs. A session directory wins
// over a transcript path when both are given.
func (s Signal) Source() *eventlog.Source {
	if s.SessionDir != "" {
		return eventlog.FromSessionDir(s.SessionDir)
	}
	return eventlog.FromClaudeTranscript(s.TranscriptPath)
}

// Hints merges signal facts over the session's metadata file
func (s Signal) Hints(meta eventlog.Metadata) metrics.Hints {
	h := metrics.Hints{
		TurnCount: meta.TurnCount,
		StartedAt: meta.StartedAt,
		EndedAt:   meta.EndedAt,
		Model:     meta.Model,
	}
	if s.TurnCount > 0 {
		h.TurnCount = s.TurnCount
	}
	if s.StartedAt != nil {
		h.StartedAt = s.StartedAt
	}
	if s.EndedAt != nil {
		h.EndedAt = s.EndedAt
	}
	return h
}

// Facts returns the turn count and duration the signal alone implies, and
// whether both are known without reading the log.
func (s Signal) Facts() (Facts, bool) {
	if s.TurnCount <= 0 || s.StartedAt == nil || s.EndedAt == nil {
		return Facts{}, false
	}
	return Facts{TurnCount: s.TurnCount, DurationSeconds: s.EndedAt.Sub(*s.StartedAt).Seconds()}, true
}
