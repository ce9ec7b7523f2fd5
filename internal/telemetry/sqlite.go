package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists telemetry in a local sqlite database so usage windows
// survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the telemetry database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize telemetry schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		tokens_used INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_user_time ON usage_log(user_id, created_at);

	CREATE TABLE IF NOT EXISTS crisis_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		crisis_level INTEGER NOT NULL,
		description TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_crisis_user ON crisis_log(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AppendUsage records one generation call.
func (s *SQLiteStore) AppendUsage(ctx context.Context, rec UsageRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_log (user_id, tokens_used, created_at) VALUES (?, ?, ?)`,
		rec.UserID, rec.TokensUsed, rec.CreatedAt.UTC())
	return err
}

// CountUsageSince counts usage records for userID at or after since.
func (s *SQLiteStore) CountUsageSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_log WHERE user_id = ? AND created_at >= ?`,
		userID, since.UTC()).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AppendCrisis records one crisis detection.
func (s *SQLiteStore) AppendCrisis(ctx context.Context, rec CrisisRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crisis_log (user_id, crisis_level, description, created_at) VALUES (?, ?, ?, ?)`,
		rec.UserID, rec.Level, rec.Description, rec.CreatedAt.UTC())
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
