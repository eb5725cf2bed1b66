package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// SessionEndEvent is the Claude Code hook event the analyzer runs on
	SessionEndEvent = "SessionEnd"

	// BinaryName is matched when detecting our own hook entries
	BinaryName = "confab-insights"

	maxSettingsUpdateRetries = 10
	baseSettingsRetryDelay   = 5 * time.Millisecond
)

var errSettingsModified = errors.New("settings file was modified by another process")

// ClaudeSettings is ~/.claude/settings.json. Only hooks are decoded;
// every other top-level key round-trips untouched through Other.
type ClaudeSettings struct {
	Hooks map[string][]HookMatcher
	Other map[string]json.RawMessage
}

// HookMatcher represents a hook matcher configuration
type HookMatcher struct {
	Matcher string `json:"matcher"`
	Hooks   []Hook `json:"hooks"`
}

// Hook represents a single hook command
type Hook struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Timeout int    `json:"timeout,omitempty"`
}

func (s *ClaudeSettings) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Hooks = make(map[string][]HookMatcher)
	if hooks, ok := raw["hooks"]; ok {
		if err := json.Unmarshal(hooks, &s.Hooks); err != nil {
			return fmt.Errorf("hooks: %w", err)
		}
		delete(raw, "hooks")
	}
	s.Other = raw
	return nil
}

func (s ClaudeSettings) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Other)+1)
	for k, v := range s.Other {
		out[k] = v
	}
	if len(s.Hooks) > 0 {
		out["hooks"] = s.Hooks
	}
	return json.Marshal(out)
}

// ReadSettings reads the Claude settings file. A missing file yields empty settings.
func ReadSettings() (*ClaudeSettings, error) {
	settingsPath, err := GetClaudeSettingsPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings path: %w", err)
	}

	data, err := os.ReadFile(settingsPath)
	if errors.Is(err, os.ErrNotExist) {
		return &ClaudeSettings{Hooks: make(map[string][]HookMatcher)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var settings ClaudeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return &settings, nil
}

// writeSettings writes settings via temp file + rename. When expectedMtime is
// non-zero the write is refused if the file changed since it was read.
func writeSettings(settings *ClaudeSettings, expectedMtime time.Time) error {
	settingsPath, err := GetClaudeSettingsPath()
	if err != nil {
		return fmt.Errorf("failed to get settings path: %w", err)
	}

	settingsDir := filepath.Dir(settingsPath)
	if err := os.MkdirAll(settingsDir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := WriteFileAtomic(settingsPath, data, 0644, func() error {
		if expectedMtime.IsZero() {
			return nil
		}
		info, err := os.Stat(settingsPath)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat settings for mtime check: %w", err)
		}
		if info != nil && !info.ModTime().Equal(expectedMtime) {
			return errSettingsModified
		}
		return nil
	}); err != nil {
		return err
	}
	return nil
}

// WriteFileAtomic writes data to a unique temp file next to path, syncs it
// and renames it into place. beforeRename, when non-nil, runs right before
// the rename and aborts the write if it returns an error.
func WriteFileAtomic(path string, data []byte, perm os.FileMode, beforeRename func() error) error {
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to set temp file permissions: %w", err)
	}

	if beforeRename != nil {
		if err := beforeRename(); err != nil {
			os.Remove(tempPath)
			return err
		}
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// AtomicUpdateSettings performs a read-modify-write with mtime-based
// optimistic locking, retrying with jittered exponential backoff when
// another process wrote the file in between.
func AtomicUpdateSettings(updateFn func(*ClaudeSettings) error) error {
	settingsPath, err := GetClaudeSettingsPath()
	if err != nil {
		return fmt.Errorf("failed to get settings path: %w", err)
	}

	for attempt := 0; attempt < maxSettingsUpdateRetries; attempt++ {
		var mtime time.Time
		if info, err := os.Stat(settingsPath); err == nil {
			mtime = info.ModTime()
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat settings: %w", err)
		}

		settings, err := ReadSettings()
		if err != nil {
			return err
		}
		if err := updateFn(settings); err != nil {
			return fmt.Errorf("update function failed: %w", err)
		}

		err = writeSettings(settings, mtime)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errSettingsModified) {
			return err
		}
		if attempt < maxSettingsUpdateRetries-1 {
			backoff := baseSettingsRetryDelay * time.Duration(1<<uint(attempt))
			jitter := time.Duration(rand.Int63n(int64(backoff / 2)))
			time.Sleep(backoff + jitter)
		}
	}
	return fmt.Errorf("failed to update settings after %d attempts: %w", maxSettingsUpdateRetries, errSettingsModified)
}

// GetBinaryPath returns the absolute path to the running binary
func GetBinaryPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	realPath, err := filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve symlinks: %w", err)
	}
	return realPath, nil
}

// HookCommand is the command line registered for SessionEnd
func HookCommand(binaryPath string) string {
	return fmt.Sprintf("%s hook session-end", binaryPath)
}

// InstallHook registers the SessionEnd hook, replacing an older entry of ours
func InstallHook(binaryPath string) error {
	ours := Hook{Type: "command", Command: HookCommand(binaryPath)}

	return AtomicUpdateSettings(func(settings *ClaudeSettings) error {
		matchers := settings.Hooks[SessionEndEvent]
		for i, matcher := range matchers {
			if matcher.Matcher != "*" {
				continue
			}
			for j, hook := range matcher.Hooks {
				if hook.Type == "command" && isInsightsCommand(hook.Command) {
					matchers[i].Hooks[j] = ours
					return nil
				}
			}
			matchers[i].Hooks = append(matcher.Hooks, ours)
			return nil
		}
		settings.Hooks[SessionEndEvent] = append(matchers, HookMatcher{Matcher: "*", Hooks: []Hook{ours}})
		return nil
	})
}

// UninstallHook removes our SessionEnd hook entries and drops empty matchers
func UninstallHook() error {
	return AtomicUpdateSettings(func(settings *ClaudeSettings) error {
		matchers := settings.Hooks[SessionEndEvent]
		if len(matchers) == 0 {
			return nil
		}

		var updated []HookMatcher
		for _, matcher := range matchers {
			var remaining []Hook
			for _, hook := range matcher.Hooks {
				if hook.Type != "command" || !isInsightsCommand(hook.Command) {
					remaining = append(remaining, hook)
				}
			}
			if len(remaining) > 0 {
				matcher.Hooks = remaining
				updated = append(updated, matcher)
			}
		}
		if len(updated) == 0 {
			delete(settings.Hooks, SessionEndEvent)
		} else {
			settings.Hooks[SessionEndEvent] = updated
		}
		return nil
	})
}

// IsHookInstalled reports whether a SessionEnd hook of ours is registered
func IsHookInstalled() (bool, error) {
	settings, err := ReadSettings()
	if err != nil {
		return false, err
	}
	for _, matcher := range settings.Hooks[SessionEndEvent] {
		for _, hook := range matcher.Hooks {
			if hook.Type == "command" && isInsightsCommand(hook.Command) {
				return true, nil
			}
		}
	}
	return false, nil
}

// isInsightsCommand matches on the executable's base name only, so
// unrelated commands that merely mention us are left alone.
func isInsightsCommand(command string) bool {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return false
	}
	return filepath.Base(parts[0]) == BinaryName
}
