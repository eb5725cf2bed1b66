// Package store persists insight records as one JSON document per session
// and keeps a SQLite index over them for listing and search.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ConfabulousDev/confab-insights/internal/config"
	"github.com/ConfabulousDev/confab-insights/internal/insight"
	"github.com/ConfabulousDev/confab-insights/internal/logger"
)

const (
	recordExt  = ".json"
	recordPerm = 0600
	dirPerm    = 0700
)

var (
	ErrWriteFailure     = errors.New("failed to write insight record")
	ErrNotFound         = errors.New("insight record not found")
	ErrInvalidSessionID = errors.New("invalid session id")
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidateSessionID rejects ids that could escape the records directory
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) || strings.Trim(id, ".") == "" {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

// FileStore keeps records under root, one file per session id. Writes go
// through a temp file and a rename so readers never see a partial record.
type FileStore struct {
	root string

	// beforeRename is a test hook run between the temp write and the rename
	beforeRename func() error
}

// NewFileStore returns a store rooted at root. The directory is created
// on first write.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Root returns the records directory
func (s *FileStore) Root() string { return s.root }

// Path returns the canonical location of a session's record
func (s *FileStore) Path(sessionID string) (string, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, sessionID+recordExt), nil
}

// Save writes rec, replacing any previous record for the same session in
// full. Errors wrap ErrWriteFailure; a failed save leaves the previous
// record (or none) in place.
func (s *FileStore) Save(rec *insight.SessionInsight) (string, error) {
	path, err := s.Path(rec.SessionID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrWriteFailure, err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode record: %v", ErrWriteFailure, err)
	}
	if err := os.MkdirAll(s.root, dirPerm); err != nil {
		return "", fmt.Errorf("%w: failed to create records directory: %v", ErrWriteFailure, err)
	}
	if err := config.WriteFileAtomic(path, append(data, '\n'), recordPerm, s.beforeRename); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWriteFailure, err)
	}
	return path, nil
}

// Load reads a session's record
func (s *FileStore) Load(sessionID string) (*insight.SessionInsight, error) {
	path, err := s.Path(sessionID)
	if err != nil {
		return nil, err
	}
	return readRecord(path)
}

func readRecord(path string) (*insight.SessionInsight, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	var rec insight.SessionInsight
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}

// Exists reports whether a record for sessionID is present. It is a
// best-effort check; a concurrent writer may create one right after.
func (s *FileStore) Exists(sessionID string) bool {
	path, err := s.Path(sessionID)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// IDs returns the session ids that have records, sorted
func (s *FileStore) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read records directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}
		id := strings.TrimSuffix(name, recordExt)
		if ValidateSessionID(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// List loads every record, newest first. Unreadable records are logged
// and skipped.
func (s *FileStore) List() ([]*insight.SessionInsight, error) {
	ids, err := s.IDs()
	if err != nil {
		return nil, err
	}
	records := make([]*insight.SessionInsight, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Load(id)
		if err != nil {
			logger.Warn("skipping unreadable insight record", "session_id", id, "error", err)
			continue
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].GeneratedAt.After(records[j].GeneratedAt)
	})
	return records, nil
}

// Delete removes a session's record
func (s *FileStore) Delete(sessionID string) error {
	path, err := s.Path(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}
