package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ConfabulousDev/confab-insights/internal/insight"
	"github.com/ConfabulousDev/confab-insights/internal/logger"
)

// tagSeparator joins tags in aggregate queries; normalized tags never
// contain control characters.
const tagSeparator = "\x1f"

// Index is a rebuildable SQLite view over the JSON records. The records
// remain the source of truth.
type Index struct {
	conn *sql.DB
	path string
}

// Entry is one indexed record
type Entry struct {
	SessionID       string          `json:"session_id"`
	GeneratedAt     time.Time       `json:"generated_at"`
	Outcome         insight.Outcome `json:"outcome"`
	Summary         string          `json:"summary"`
	TurnCount       int             `json:"turn_count"`
	DurationSeconds float64         `json:"duration_seconds"`
	TotalTokens     int64           `json:"total_tokens"`
	Errors          int             `json:"errors_encountered"`
	HasAnalysis     bool            `json:"has_llm_analysis"`
	Tags            []string        `json:"tags"`
}

// Filter narrows Query. Zero values match everything.
type Filter struct {
	Outcome insight.Outcome
	Tag     string
	Since   time.Time
	Limit   int
}

// OpenIndex opens or creates the index database at path
func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	idx := &Index{conn: conn, path: path}
	if err := idx.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return idx, nil
}

// Close closes the database connection
func (idx *Index) Close() error {
	return idx.conn.Close()
}

// Path returns the database file path
func (idx *Index) Path() string {
	return idx.path
}

func (idx *Index) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS insights (
		session_id TEXT PRIMARY KEY,
		generated_at INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		summary TEXT NOT NULL,
		turn_count INTEGER NOT NULL,
		duration_seconds REAL NOT NULL,
		total_tokens INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		has_analysis INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS insight_tags (
		session_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		PRIMARY KEY (session_id, tag),
		FOREIGN KEY (session_id) REFERENCES insights(session_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_insights_generated_at ON insights(generated_at);
	CREATE INDEX IF NOT EXISTS idx_insights_outcome ON insights(outcome);
	CREATE INDEX IF NOT EXISTS idx_insight_tags_tag ON insight_tags(tag);
	`
	if _, err := idx.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize index schema: %w", err)
	}
	return nil
}

// Upsert indexes rec, replacing any previous entry for the session
func (idx *Index) Upsert(ctx context.Context, rec *insight.SessionInsight) error {
	tx, err := idx.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertTx(ctx, tx, rec); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func upsertTx(ctx context.Context, tx *sql.Tx, rec *insight.SessionInsight) error {
	m := rec.Metrics
	_, err := tx.ExecContext(ctx, `
		INSERT INTO insights (session_id, generated_at, outcome, summary, turn_count, duration_seconds, total_tokens, errors, has_analysis)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			generated_at = excluded.generated_at,
			outcome = excluded.outcome,
			summary = excluded.summary,
			turn_count = excluded.turn_count,
			duration_seconds = excluded.duration_seconds,
			total_tokens = excluded.total_tokens,
			errors = excluded.errors,
			has_analysis = excluded.has_analysis
	`,
		rec.SessionID,
		rec.GeneratedAt.UnixMilli(),
		string(rec.Outcome),
		rec.Summary,
		m.TurnCount,
		m.DurationSeconds,
		m.TotalTokens,
		m.ErrorsEncountered,
		rec.HasAnalysis,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert insight: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM insight_tags WHERE session_id = ?`, rec.SessionID); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	for _, tag := range rec.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO insight_tags (session_id, tag) VALUES (?, ?)`, rec.SessionID, tag); err != nil {
			return fmt.Errorf("failed to insert tag: %w", err)
		}
	}
	return nil
}

// Delete drops a session from the index
func (idx *Index) Delete(ctx context.Context, sessionID string) error {
	if _, err := idx.conn.ExecContext(ctx, `DELETE FROM insights WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete insight: %w", err)
	}
	return nil
}

// Query returns matching entries, newest first
func (idx *Index) Query(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Outcome != "" {
		where = append(where, "i.outcome = ?")
		args = append(args, string(f.Outcome))
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM insight_tags t WHERE t.session_id = i.session_id AND t.tag = ?)")
		args = append(args, strings.ToLower(f.Tag))
	}
	if !f.Since.IsZero() {
		where = append(where, "i.generated_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}

	query := `
		SELECT i.session_id, i.generated_at, i.outcome, i.summary, i.turn_count,
			i.duration_seconds, i.total_tokens, i.errors, i.has_analysis,
			(SELECT group_concat(tag, char(31)) FROM insight_tags t WHERE t.session_id = i.session_id)
		FROM insights i`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY i.generated_at DESC, i.session_id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := idx.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			genMilli int64
			outcome  string
			tags     sql.NullString
		)
		if err := rows.Scan(&e.SessionID, &genMilli, &outcome, &e.Summary, &e.TurnCount,
			&e.DurationSeconds, &e.TotalTokens, &e.Errors, &e.HasAnalysis, &tags); err != nil {
			return nil, fmt.Errorf("failed to scan index row: %w", err)
		}
		e.GeneratedAt = time.UnixMilli(genMilli).UTC()
		e.Outcome = insight.Outcome(outcome)
		e.Tags = []string{}
		if tags.Valid && tags.String != "" {
			e.Tags = strings.Split(tags.String, tagSeparator)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate index rows: %w", err)
	}
	return entries, nil
}

// OutcomeCounts tallies indexed records by outcome
func (idx *Index) OutcomeCounts(ctx context.Context) (map[insight.Outcome]int, error) {
	rows, err := idx.conn.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM insights GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[insight.Outcome]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		counts[insight.Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

// Rebuild replaces the index contents with the records found in fs
func (idx *Index) Rebuild(ctx context.Context, fs *FileStore) (int, error) {
	records, err := fs.List()
	if err != nil {
		return 0, err
	}

	tx, err := idx.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM insight_tags`); err != nil {
		return 0, fmt.Errorf("failed to clear tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM insights`); err != nil {
		return 0, fmt.Errorf("failed to clear index: %w", err)
	}
	for _, rec := range records {
		if err := upsertTx(ctx, tx, rec); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Info("index rebuilt", "records", len(records), "path", idx.path)
	return len(records), nil
}
