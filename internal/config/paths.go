package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// StateDirEnv overrides the insights state directory
	StateDirEnv = "CONFAB_INSIGHTS_DIR"

	// ConfigPathEnv overrides the config file location
	ConfigPathEnv = "CONFAB_INSIGHTS_CONFIG"

	// ClaudeStateDirEnv is the environment variable to override the default Claude state directory
	ClaudeStateDirEnv = "CONFAB_CLAUDE_DIR"
)

// Paths derives every on-disk location from a single root so tests can
// point the whole tool at a temp directory.
type Paths struct {
	Root string
}

// DefaultPaths returns paths rooted at CONFAB_INSIGHTS_DIR or ~/.confab/insights
func DefaultPaths() (Paths, error) {
	if dir := os.Getenv(StateDirEnv); dir != "" {
		return Paths{Root: dir}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("failed to get home directory: %w", err)
	}
	return Paths{Root: filepath.Join(home, ".confab", "insights")}, nil
}

// InsightsDir holds one JSON record per session
func (p Paths) InsightsDir() string { return filepath.Join(p.Root, "sessions") }

// IndexPath is the SQLite index over the JSON records
func (p Paths) IndexPath() string { return filepath.Join(p.Root, "index.db") }

// WorkersDir holds state files of running background workers
func (p Paths) WorkersDir() string { return filepath.Join(p.Root, "workers") }

// CompletionsPath is the append-only completion notification log
func (p Paths) CompletionsPath() string { return filepath.Join(p.Root, "completions.jsonl") }

// ConfigPath returns CONFAB_INSIGHTS_CONFIG or <root>/config.yaml
func (p Paths) ConfigPath() string {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path
	}
	return filepath.Join(p.Root, "config.yaml")
}

// EnvPath is the optional .env file holding the provider key
func (p Paths) EnvPath() string { return filepath.Join(p.Root, ".env") }

// GetClaudeStateDir returns the Claude state directory path.
// Defaults to ~/.claude but can be overridden with CONFAB_CLAUDE_DIR env var.
func GetClaudeStateDir() (string, error) {
	if envDir := os.Getenv(ClaudeStateDirEnv); envDir != "" {
		return envDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".claude"), nil
}

// GetProjectsDir returns the path to the Claude projects directory
func GetProjectsDir() (string, error) {
	claudeDir, err := GetClaudeStateDir()
	if err != nil {
		return "", fmt.Errorf("failed to get claude state directory: %w", err)
	}
	return filepath.Join(claudeDir, "projects"), nil
}

// GetClaudeSettingsPath returns the path to the Claude settings file
func GetClaudeSettingsPath() (string, error) {
	claudeDir, err := GetClaudeStateDir()
	if err != nil {
		return "", fmt.Errorf("failed to get claude state directory: %w", err)
	}
	return filepath.Join(claudeDir, "settings.json"), nil
}
