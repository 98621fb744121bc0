// Package storage persists population snapshots in a SQLite database, one
// row per run and generation.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baldhumanity/genetic-go/genetic"

	_ "modernc.org/sqlite"
)

// ErrNotInitialized is returned by store operations before Init.
var ErrNotInitialized = errors.New("store is not initialized")

// RunInfo summarizes the snapshots stored for one run.
type RunInfo struct {
	RunID          string
	Snapshots      int
	LastGeneration int
	Updated        time.Time
}

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Init opens the database and creates the schema. Calling it again on an
// open store does nothing.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// SaveSnapshot stores a snapshot under its run ID and generation, replacing
// any earlier snapshot of the same generation. A snapshot without a run ID
// is given a fresh one, which is returned.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *genetic.Snapshot) (string, error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}
	if snap.RunID == "" {
		snap.RunID = uuid.NewString()
	}

	var buf bytes.Buffer
	if err := genetic.WriteSnapshot(&buf, snap); err != nil {
		return "", err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, generation, saved_at, organisms, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, generation) DO UPDATE SET
			saved_at = excluded.saved_at,
			organisms = excluded.organisms,
			payload = excluded.payload
	`, snap.RunID, snap.Generation, snap.Saved.UnixNano(), len(snap.Organisms), buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("save snapshot %s/%d: %w", snap.RunID, snap.Generation, err)
	}
	return snap.RunID, nil
}

// SavePopulation snapshots p and stores it.
func (s *SQLiteStore) SavePopulation(ctx context.Context, p *genetic.Population) error {
	snap, err := p.Snapshot()
	if err != nil {
		return err
	}
	_, err = s.SaveSnapshot(ctx, snap)
	return err
}

// GetSnapshot loads the snapshot of one generation of a run.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, runID string, generation int) (*genetic.Snapshot, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE run_id = ? AND generation = ?`,
		runID, generation).Scan(&payload)
	return decodeRow(payload, err, runID)
}

// Latest loads the most recent generation stored for a run.
func (s *SQLiteStore) Latest(ctx context.Context, runID string) (*genetic.Snapshot, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE run_id = ? ORDER BY generation DESC LIMIT 1`,
		runID).Scan(&payload)
	return decodeRow(payload, err, runID)
}

func decodeRow(payload []byte, err error, runID string) (*genetic.Snapshot, bool, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	snap, err := genetic.ReadSnapshot(bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("decode snapshot of run %s: %w", runID, err)
	}
	return snap, true, nil
}

// ListRuns returns the stored runs, most recently updated first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunInfo, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, COUNT(*), MAX(generation), MAX(saved_at)
		FROM snapshots
		GROUP BY run_id
		ORDER BY MAX(saved_at) DESC, run_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		var saved int64
		if err := rows.Scan(&info.RunID, &info.Snapshots, &info.LastGeneration, &saved); err != nil {
			return nil, err
		}
		info.Updated = time.Unix(0, saved)
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// DeleteRun removes every snapshot of a run.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM snapshots WHERE run_id = ?`, runID)
	return err
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			run_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			saved_at INTEGER NOT NULL,
			organisms INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, generation)
		);
	`)
	return err
}
