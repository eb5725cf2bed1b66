package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsInsightsCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    bool
	}{
		{"full path", "/usr/local/bin/confab-insights hook session-end", true},
		{"bare name", "confab-insights hook session-end", true},
		{"no args", "confab-insights", true},
		{"different binary", "/usr/bin/confab save", false},
		{"name in directory only", "/opt/confab-insights/bin/other hook", false},
		{"substring", "myconfab-insights hook", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isInsightsCommand(tt.command); got != tt.want {
				t.Errorf("isInsightsCommand(%q) = %v, want %v", tt.command, got, tt.want)
			}
		})
	}
}

func TestInstallAndUninstallHook(t *testing.T) {
	claudeDir := t.TempDir()
	t.Setenv(ClaudeStateDirEnv, claudeDir)
	settingsPath := filepath.Join(claudeDir, "settings.json")

	existing := `{
  "model": "opus",
  "hooks": {
    "SessionEnd": [
      {"matcher": "*", "hooks": [{"type": "command", "command": "/usr/bin/confab save"}]}
    ]
  }
}`
	if err := os.WriteFile(settingsPath, []byte(existing), 0644); err != nil {
		t.Fatal(err)
	}

	if err := InstallHook("/usr/local/bin/confab-insights"); err != nil {
		t.Fatalf("InstallHook() error = %v", err)
	}
	// Installing twice must not duplicate the entry
	if err := InstallHook("/usr/local/bin/confab-insights"); err != nil {
		t.Fatalf("InstallHook() second call error = %v", err)
	}

	installed, err := IsHookInstalled()
	if err != nil || !installed {
		t.Fatalf("IsHookInstalled() = %v, %v", installed, err)
	}

	settings, err := ReadSettings()
	if err != nil {
		t.Fatal(err)
	}
	hooks := settings.Hooks[SessionEndEvent][0].Hooks
	if len(hooks) != 2 {
		t.Fatalf("expected 2 hooks (existing + ours), got %d: %+v", len(hooks), hooks)
	}
	if string(settings.Other["model"]) != `"opus"` {
		t.Errorf("unrelated settings not preserved: %v", settings.Other)
	}

	if err := UninstallHook(); err != nil {
		t.Fatalf("UninstallHook() error = %v", err)
	}
	installed, _ = IsHookInstalled()
	if installed {
		t.Error("hook still installed after uninstall")
	}

	data, _ := os.ReadFile(settingsPath)
	if !strings.Contains(string(data), "/usr/bin/confab save") {
		t.Errorf("uninstall removed a foreign hook:\n%s", data)
	}
}

func TestUninstallHook_DropsEmptyMatcher(t *testing.T) {
	t.Setenv(ClaudeStateDirEnv, t.TempDir())

	if err := InstallHook("/bin/confab-insights"); err != nil {
		t.Fatal(err)
	}
	if err := UninstallHook(); err != nil {
		t.Fatal(err)
	}
	settings, err := ReadSettings()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := settings.Hooks[SessionEndEvent]; ok {
		t.Errorf("empty SessionEnd entry left behind: %+v", settings.Hooks)
	}
}

func TestWriteFileAtomic_AbortLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.json")
	if err := os.WriteFile(path, []byte(`{"v":1}`), 0644); err != nil {
		t.Fatal(err)
	}

	err := WriteFileAtomic(path, []byte(`{"v":2}`), 0644, func() error { return errSettingsModified })
	if err == nil {
		t.Fatal("expected abort error")
	}

	data, _ := os.ReadFile(path)
	var v map[string]int
	if err := json.Unmarshal(data, &v); err != nil || v["v"] != 1 {
		t.Errorf("original file changed: %s", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
}
