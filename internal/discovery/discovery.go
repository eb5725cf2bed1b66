// Package discovery finds Claude Code session transcripts on disk.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ConfabulousDev/confab-insights/internal/logger"
	"github.com/ConfabulousDev/confab-insights/internal/store"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrAmbiguous = errors.New("ambiguous session id")
)

// SessionInfo holds metadata about a discovered session
type SessionInfo struct {
	SessionID      string
	TranscriptPath string
	ProjectPath    string // relative to the projects dir
	ModTime        time.Time
	SizeBytes      int64
}

// Scan finds every session transcript below projectsDir, oldest first.
// A missing directory yields no sessions.
func Scan(projectsDir string) ([]SessionInfo, error) {
	if _, err := os.Stat(projectsDir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var sessions []SessionInfo
	err := filepath.WalkDir(projectsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("failed to access path during scan", "path", path, "error", err)
			return nil
		}
		if s := parseSessionFromPath(path, d, projectsDir); s != nil {
			sessions = append(sessions, *s)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk projects directory: %w", err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ModTime.Before(sessions[j].ModTime)
	})
	return sessions, nil
}

// Since keeps sessions modified at or after t. A zero t keeps everything.
func Since(sessions []SessionInfo, t time.Time) []SessionInfo {
	if t.IsZero() {
		return sessions
	}
	var out []SessionInfo
	for _, s := range sessions {
		if !s.ModTime.Before(t) {
			out = append(out, s)
		}
	}
	return out
}

// Find resolves a full or prefix session id
func Find(projectsDir, prefix string) (SessionInfo, error) {
	sessions, err := Scan(projectsDir)
	if err != nil {
		return SessionInfo{}, err
	}

	var matches []SessionInfo
	for _, s := range sessions {
		if s.SessionID == prefix {
			return s, nil
		}
		if strings.HasPrefix(s.SessionID, prefix) {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 0:
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return matches[0], nil
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.SessionID
	}
	return SessionInfo{}, fmt.Errorf("%w %q matches %d sessions: %s",
		ErrAmbiguous, prefix, len(matches), strings.Join(ids, ", "))
}

func parseSessionFromPath(path string, d fs.DirEntry, projectsDir string) *SessionInfo {
	if d.IsDir() || filepath.Ext(path) != ".jsonl" {
		return nil
	}
	name := d.Name()
	// Sidechain transcripts belong to their parent session
	if strings.HasPrefix(name, "agent-") {
		return nil
	}
	sessionID := strings.TrimSuffix(name, ".jsonl")
	if store.ValidateSessionID(sessionID) != nil {
		return nil
	}

	info, err := d.Info()
	if err != nil {
		return nil
	}
	rel, _ := filepath.Rel(projectsDir, filepath.Dir(path))
	return &SessionInfo{
		SessionID:      sessionID,
		TranscriptPath: path,
		ProjectPath:    rel,
		ModTime:        info.ModTime(),
		SizeBytes:      info.Size(),
	}
}
