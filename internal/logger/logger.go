package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// LogDirEnv overrides the log directory (used by tests and packaging)
	LogDirEnv = "CONFAB_INSIGHTS_LOG_DIR"

	defaultLogDir = ".confab/insights/logs"
	logFileName   = "insights.log"
	maxSizeMB     = 1    // 1MB per file
	maxAgeDays    = 14   // Keep 2 weeks
	maxBackups    = 20   // Max old log files (safety limit)
	compressOld   = true // Compress rotated logs
)

var (
	mu      sync.Mutex
	log     = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: levelFromEnv()}))
	file    io.WriteCloser
	logPath string
	once    sync.Once
)

// levelFromEnv parses LOG_LEVEL (debug, info, warn, error; case-insensitive)
func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the directory log files are written to
func LogDir() (string, error) {
	if dir := os.Getenv(LogDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, defaultLogDir), nil
}

// Init switches logging to the rotating log file. Until Init succeeds,
// log lines go to stderr. Hook commands must call Init before doing any
// work so nothing is written to stdout.
func Init() error {
	var err error
	once.Do(func() {
		dir, dirErr := LogDir()
		if dirErr != nil {
			err = dirErr
			return
		}
		if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
			err = fmt.Errorf("failed to create log directory: %w", mkErr)
			return
		}

		path := filepath.Join(dir, logFileName)
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxAge:     maxAgeDays,
			MaxBackups: maxBackups,
			Compress:   compressOld,
			LocalTime:  true,
		}

		mu.Lock()
		defer mu.Unlock()
		file = rotator
		logPath = path
		log = slog.New(slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: levelFromEnv()}))
		slog.SetDefault(log)
	})
	return err
}

// Close flushes and closes the log file, if one is open
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		return file.Close()
	}
	return nil
}

// Path returns the active log file path, or "" when logging to stderr
func Path() string {
	mu.Lock()
	defer mu.Unlock()
	return logPath
}

// Get returns the process-wide logger
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return log
}

// SetOutputForTest redirects log output to w at debug level.
// Returns a cleanup function that restores the original logger.
// This should only be used in tests.
func SetOutputForTest(w io.Writer) func() {
	mu.Lock()
	original := log
	log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mu.Unlock()
	return func() {
		mu.Lock()
		log = original
		mu.Unlock()
	}
}

// Debug logs a debug message with structured fields
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// Info logs an informational message with structured fields
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Warn logs a warning message with structured fields
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs an error message with structured fields
func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}
