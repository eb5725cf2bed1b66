package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Default()
	if cfg.SessionLearning.MinTurnsForMetrics != want.SessionLearning.MinTurnsForMetrics ||
		cfg.SessionLearning.LLMAnalysisMode != ModeThreshold ||
		cfg.Privacy.MaxContextTokens != 50000 ||
		!cfg.Privacy.RedactSensitive || cfg.Privacy.IncludeCodeSnippets {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
session_learning:
  llm_analysis_mode: automatic
privacy:
  include_file_paths: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SessionLearning.LLMAnalysisMode != ModeAutomatic {
		t.Errorf("mode = %q, want automatic", cfg.SessionLearning.LLMAnalysisMode)
	}
	if cfg.Privacy.IncludeFilePaths {
		t.Error("include_file_paths should be false")
	}
	if cfg.SessionLearning.MaxEventsToProcess != 1000 {
		t.Errorf("max_events_to_process = %d, want default 1000", cfg.SessionLearning.MaxEventsToProcess)
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		contains string
	}{
		{
			name:     "unknown key",
			body:     "session_learning:\n  min_turns: 4\n",
			contains: "min_turns",
		},
		{
			name:     "bad mode",
			body:     "session_learning:\n  llm_analysis_mode: sometimes\n",
			contains: "llm_analysis_mode",
		},
		{
			name:     "bad privacy level",
			body:     "privacy:\n  level: everyone\n",
			contains: "privacy.level",
		},
		{
			name:     "zero timeout",
			body:     "session_learning:\n  analysis_timeout_seconds: 0\n",
			contains: "analysis_timeout_seconds",
		},
		{
			name:     "negative threshold",
			body:     "session_learning:\n  min_turns_for_metrics: -1\n",
			contains: "min_turns_for_metrics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error should wrap ErrInvalidConfig: %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q should mention %q", err, tt.contains)
			}
		})
	}
}

func TestLoad_LegacyAliases(t *testing.T) {
	t.Run("applied when new key absent", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "session_learning:\n  min_turns_for_analysis: 3\n  min_duration_seconds: 60\n"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.SessionLearning.MinTurnsForMetrics != 3 || cfg.SessionLearning.MinDurationForMetrics != 60 {
			t.Errorf("legacy not mapped: %+v", cfg.SessionLearning)
		}
	})

	t.Run("new key wins", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "session_learning:\n  min_turns_for_analysis: 3\n  min_turns_for_metrics: 7\n"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.SessionLearning.MinTurnsForMetrics != 7 {
			t.Errorf("min_turns_for_metrics = %d, want 7", cfg.SessionLearning.MinTurnsForMetrics)
		}
	})
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFAB_INSIGHTS_MODE", "on_demand")
	t.Setenv("CONFAB_INSIGHTS_TIMEOUT_SECONDS", "5")
	t.Setenv("CONFAB_INSIGHTS_RUN_IN_BACKGROUND", "false")
	t.Setenv("CONFAB_INSIGHTS_MODEL", "claude-sonnet-4-5")
	t.Setenv(APIKeyEnv, "sk-ant-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SessionLearning.LLMAnalysisMode != ModeOnDemand {
		t.Errorf("mode = %q", cfg.SessionLearning.LLMAnalysisMode)
	}
	if cfg.SessionLearning.AnalysisTimeoutSeconds != 5 {
		t.Errorf("timeout = %d", cfg.SessionLearning.AnalysisTimeoutSeconds)
	}
	if cfg.SessionLearning.RunInBackground {
		t.Error("run_in_background should be false")
	}
	if cfg.Provider.Model != "claude-sonnet-4-5" {
		t.Errorf("model = %q", cfg.Provider.Model)
	}
	if cfg.APIKey != "sk-ant-test" {
		t.Errorf("api key not read from env")
	}
}

func TestLoad_EnvInvalidMode(t *testing.T) {
	t.Setenv("CONFAB_INSIGHTS_MODE", "weekly")
	if _, err := Load(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CONFAB_TEST_DOTENV_KEY=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFAB_TEST_DOTENV_KEY", "")
	os.Unsetenv("CONFAB_TEST_DOTENV_KEY")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("CONFAB_TEST_DOTENV_KEY"); got != "from-file" {
		t.Errorf("got %q, want from-file", got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing file should not error: %v", err)
	}
}

func TestDefaultPaths(t *testing.T) {
	root := t.TempDir()
	t.Setenv(StateDirEnv, root)

	paths, err := DefaultPaths()
	if err != nil {
		t.Fatalf("DefaultPaths() error = %v", err)
	}
	if paths.InsightsDir() != filepath.Join(root, "sessions") {
		t.Errorf("InsightsDir = %s", paths.InsightsDir())
	}
	if paths.ConfigPath() != filepath.Join(root, "config.yaml") {
		t.Errorf("ConfigPath = %s", paths.ConfigPath())
	}

	t.Setenv(ConfigPathEnv, "/etc/insights.yaml")
	if paths.ConfigPath() != "/etc/insights.yaml" {
		t.Errorf("ConfigPath env override ignored: %s", paths.ConfigPath())
	}
}
