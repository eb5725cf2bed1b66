package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestInit(t *testing.T) {
	oldLog, oldFile, oldPath := log, file, logPath
	defer func() {
		log, file, logPath = oldLog, oldFile, oldPath
		once = sync.Once{}
	}()
	once = sync.Once{}

	tmpDir := t.TempDir()
	t.Setenv(LogDirEnv, tmpDir)

	if err := Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	// lumberjack creates the file lazily on first write
	Info("test message", "k", "v")

	logFile := filepath.Join(tmpDir, logFileName)
	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		t.Errorf("Log file not created: %s", logFile)
	}
	if Path() != logFile {
		t.Errorf("Path() = %q, want %q", Path(), logFile)
	}
	Close()
}

func TestLogLevelsFromEnv(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"debug", "DEBUG"},
		{"WARN", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"bogus", "INFO"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.env)
			if got := levelFromEnv().String(); got != tt.want {
				t.Errorf("levelFromEnv() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTest(&buf)
	defer restore()

	Warn("analysis degraded", "session_id", "abc", "reason", "timeout")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "analysis degraded" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["session_id"] != "abc" {
		t.Errorf("session_id = %v", entry["session_id"])
	}
}

func TestCtxFallsBackToProcessLogger(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTest(&buf)
	defer restore()

	Ctx(context.Background()).Info("plain")
	if !strings.Contains(buf.String(), `"msg":"plain"`) {
		t.Errorf("expected fallback logger output, got %s", buf.String())
	}
}

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTest(&buf)
	defer restore()

	ctx := With(context.Background(), "run_id", "r-1")
	ctx = With(ctx, "session_id", "s-1")
	Ctx(ctx).Info("stage done")

	out := buf.String()
	if !strings.Contains(out, `"run_id":"r-1"`) || !strings.Contains(out, `"session_id":"s-1"`) {
		t.Errorf("expected both fields, got %s", out)
	}
}
