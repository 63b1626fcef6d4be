package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS thresholds (
    observations REAL NOT NULL,
    outliers REAL NOT NULL,
    unknowns REAL NOT NULL,
    x2 REAL NOT NULL,
    iterations INTEGER NOT NULL,
    outcome TEXT NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    PRIMARY KEY (observations, outliers, unknowns)
);
`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetThreshold(ctx context.Context, observations, outliers, unknowns float64) (*Threshold, error) {
	var t Threshold
	var createdAt int64

	err := s.db.QueryRowContext(ctx,
		`SELECT observations, outliers, unknowns, x2, iterations, outcome, created_at
		 FROM thresholds WHERE observations = ? AND outliers = ? AND unknowns = ?`,
		observations, outliers, unknowns,
	).Scan(&t.Observations, &t.Outliers, &t.Unknowns, &t.X2, &t.Iterations, &t.Outcome, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get threshold: %w", err)
	}

	t.CreatedAt = time.Unix(createdAt, 0)
	return &t, nil
}

// SaveThreshold inserts t, replacing any existing row with the same key.
// A zero CreatedAt is stamped with the current time.
func (s *SQLiteStore) SaveThreshold(ctx context.Context, t *Threshold) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Unix(time.Now().Unix(), 0)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO thresholds (observations, outliers, unknowns, x2, iterations, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Observations, t.Outliers, t.Unknowns, t.X2, t.Iterations, t.Outcome, t.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save threshold: %w", err)
	}

	return nil
}

func (s *SQLiteStore) ListThresholds(ctx context.Context) ([]*Threshold, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT observations, outliers, unknowns, x2, iterations, outcome, created_at
		 FROM thresholds ORDER BY observations, outliers, unknowns`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list thresholds: %w", err)
	}
	defer rows.Close()

	var thresholds []*Threshold
	for rows.Next() {
		var t Threshold
		var createdAt int64
		if err := rows.Scan(&t.Observations, &t.Outliers, &t.Unknowns, &t.X2, &t.Iterations, &t.Outcome, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan threshold: %w", err)
		}
		t.CreatedAt = time.Unix(createdAt, 0)
		thresholds = append(thresholds, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list thresholds: %w", err)
	}

	return thresholds, nil
}

func (s *SQLiteStore) CountThresholds(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM thresholds`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count thresholds: %w", err)
	}
	return count, nil
}

// ClearThresholds deletes every cached threshold and reports how many were removed.
func (s *SQLiteStore) ClearThresholds(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM thresholds`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear thresholds: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return removed, nil
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}
