package eventlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Format identifies the on-disk layout of a session log
type Format int

const (
	// FormatNative is a session directory with events.jsonl,
	// transcript.jsonl and metadata.json.
	FormatNative Format = iota
	// FormatClaude is a single Claude Code transcript JSONL file.
	FormatClaude
)

func (f Format) String() string {
	if f == FormatClaude {
		return "claude"
	}
	return "native"
}

const (
	eventsFileName     = "events.jsonl"
	transcriptFileName = "transcript.jsonl"
	metadataFileName   = "metadata.json"
)

// Metadata is what the host recorded about the session, if anything
type Metadata struct {
	SessionID string     `json:"session_id,omitempty"`
	TurnCount int        `json:"turn_count,omitempty"`
	Model     string     `json:"model,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Source is a handle to one session's logs
type Source struct {
	Format         Format
	EventsPath     string
	TranscriptPath string
	Metadata       Metadata
}

// FromSessionDir builds a source for a native session directory.
// Missing files are not an error here; reads report them later.
func FromSessionDir(dir string) *Source {
	src := &Source{
		Format:         FormatNative,
		EventsPath:     filepath.Join(dir, eventsFileName),
		TranscriptPath: filepath.Join(dir, transcriptFileName),
	}
	if data, err := os.ReadFile(filepath.Join(dir, metadataFileName)); err == nil {
		// Best effort: bad metadata means no metadata
		_ = json.Unmarshal(data, &src.Metadata)
	}
	return src
}

// FromClaudeTranscript builds a source for a Claude Code transcript file.
// The same file is both the event log and the transcript.
func FromClaudeTranscript(path string) *Source {
	return &Source{
		Format:         FormatClaude,
		EventsPath:     path,
		TranscriptPath: path,
	}
}

// Events opens the bounded event reader
func (s *Source) Events(maxEntries int) (*Reader, error) {
	return Open(s.EventsPath, s.Format, maxEntries)
}
