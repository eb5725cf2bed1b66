package types

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// HookInput is the session-end signal. Claude Code sends the first six
// fields; other hosts may instead point at a session directory and pass
// the counters they already track.
type HookInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path,omitempty"`
	CWD            string `json:"cwd,omitempty"`
	PermissionMode string `json:"permission_mode,omitempty"`
	HookEventName  string `json:"hook_event_name,omitempty"`
	Reason         string `json:"reason,omitempty"`

	SessionDir string     `json:"session_dir,omitempty"`
	TurnCount  int        `json:"turn_count,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// HookResponse is the JSON response sent back to Claude Code
type HookResponse struct {
	Continue       bool   `json:"continue"`
	StopReason     string `json:"stopReason,omitempty"`
	SuppressOutput bool   `json:"suppressOutput"`
}

// ContinueResponse is the only response the session-end hook ever returns
func ContinueResponse() HookResponse {
	return HookResponse{Continue: true, SuppressOutput: true}
}

// ReadHookInput reads and validates a session-end signal
func ReadHookInput(r io.Reader) (*HookInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}

	var input HookInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to parse hook input: %w", err)
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return &input, nil
}

// Validate checks the fields the pipeline cannot work without
func (h *HookInput) Validate() error {
	if h.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if h.TranscriptPath == "" && h.SessionDir == "" {
		return fmt.Errorf("transcript_path or session_dir is required")
	}
	return nil
}
