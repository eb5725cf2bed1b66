package metrics

import (
	"os"
	"sort"
	"strings"

	"github.com/ConfabulousDev/confab-insights/internal/eventlog"
)

var readTools = map[string]bool{
	"read_file":    true,
	"Read":         true,
	"NotebookRead": true,
}

var modifyTools = map[string]bool{
	"write_file":   true,
	"edit_file":    true,
	"Write":        true,
	"Edit":         true,
	"MultiEdit":    true,
	"NotebookEdit": true,
}

// FilesCollector tracks distinct files read and modified. Repeated access
// to the same file counts once.
type FilesCollector struct {
	home     string
	read     map[string]struct{}
	modified map[string]struct{}
}

// NewFilesCollector creates a new files collector.
func NewFilesCollector() *FilesCollector {
	home, _ := os.UserHomeDir()
	return &FilesCollector{
		home:     home,
		read:     make(map[string]struct{}),
		modified: make(map[string]struct{}),
	}
}

func (c *FilesCollector) Collect(ev eventlog.Event) {
	if ev.Kind != eventlog.KindToolPost || ev.FilePath == "" {
		return
	}
	path := c.normalize(ev.FilePath)
	switch {
	case readTools[ev.Tool]:
		c.read[path] = struct{}{}
	case modifyTools[ev.Tool]:
		c.modified[path] = struct{}{}
	}
}

func (c *FilesCollector) Finalize(m *SessionMetrics) {
	m.FilesRead = sortedKeys(c.read)
	m.FilesModified = sortedKeys(c.modified)
	m.FilesReadCount = len(m.FilesRead)
	m.FilesModifiedCount = len(m.FilesModified)
}

// normalize collapses the home directory to "~"
func (c *FilesCollector) normalize(path string) string {
	if c.home != "" && strings.HasPrefix(path, c.home+string(os.PathSeparator)) {
		return "~" + path[len(c.home):]
	}
	return path
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
