// Package worker tracks and spawns the detached processes that run
// session analysis after the host session has ended.
package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/ConfabulousDev/confab-insights/internal/config"
)

const stateExt = ".json"

// State is written while a worker runs and removed when it exits
type State struct {
	SessionID string    `json:"session_id"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`

	dir string
}

// NewState describes the current process working on sessionID
func NewState(dir, sessionID string) *State {
	return &State{
		SessionID: sessionID,
		PID:       os.Getpid(),
		StartedAt: time.Now().UTC(),
		dir:       dir,
	}
}

func statePath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+stateExt)
}

// LoadState reads the state for sessionID. It returns nil, nil when no
// worker state exists.
func LoadState(dir, sessionID string) (*State, error) {
	data, err := os.ReadFile(statePath(dir, sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read worker state: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse worker state: %w", err)
	}
	s.dir = dir
	return &s, nil
}

// Save writes the state atomically
func (s *State) Save() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create workers directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal worker state: %w", err)
	}
	return config.WriteFileAtomic(statePath(s.dir, s.SessionID), data, 0600, nil)
}

// Delete removes the state file; a missing file is not an error
func (s *State) Delete() error {
	if err := os.Remove(statePath(s.dir, s.SessionID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete worker state: %w", err)
	}
	return nil
}

// IsRunning checks whether the worker process is still alive
func (s *State) IsRunning() bool {
	return isProcessRunning(s.PID)
}

func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes for existence without delivering anything
	return process.Signal(syscall.Signal(0)) == nil
}

// List returns every recorded worker, oldest first. State files left by
// workers that died are removed when prune is set.
func List(dir string, prune bool) ([]*State, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read workers directory: %w", err)
	}

	var states []*State
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != stateExt {
			continue
		}
		s, err := LoadState(dir, strings.TrimSuffix(name, stateExt))
		if err != nil || s == nil {
			continue
		}
		if prune && !s.IsRunning() {
			s.Delete()
			continue
		}
		states = append(states, s)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].StartedAt.Before(states[j].StartedAt) })
	return states, nil
}
