package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteSnapshotStore stores snapshots in an embedded SQLite database.
// It is the default backend for single-node deployments and local
// development. created_at is kept as unix nanoseconds so ordering does
// not depend on SQLite's text date handling.
type SQLiteSnapshotStore struct {
	db *sql.DB
}

var _ SnapshotStoreInterface = (*SQLiteSnapshotStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    id           TEXT PRIMARY KEY,
    subject_type TEXT NOT NULL,
    subject_id   TEXT NOT NULL,
    state        TEXT,
    payload      BLOB NOT NULL,
    created_at   INTEGER NOT NULL,
    created_by   TEXT
);
CREATE INDEX IF NOT EXISTS idx_snapshots_subject
    ON snapshots (subject_type, subject_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_subject_state
    ON snapshots (subject_type, subject_id, state, created_at DESC, id DESC);
`

// NewSQLiteSnapshotStore opens (creating if needed) the database at path
// and ensures the schema exists. Use ":memory:" for an ephemeral store.
func NewSQLiteSnapshotStore(path string) (*SQLiteSnapshotStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// modernc.org/sqlite serializes writes itself; a single connection
	// avoids SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure sqlite schema: %w", err)
	}
	return &SQLiteSnapshotStore{db: db}, nil
}

// Close closes the underlying database.
func (ss *SQLiteSnapshotStore) Close() error {
	return ss.db.Close()
}

// Append inserts a snapshot row.
func (ss *SQLiteSnapshotStore) Append(ctx context.Context, subjectType, subjectID string, payload json.RawMessage, state, createdBy string) (*Snapshot, error) {
	snap := Snapshot{
		ID:          uuid.New().String(),
		SubjectType: subjectType,
		SubjectID:   subjectID,
		State:       state,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   createdBy,
	}

	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, subject_type, subject_id, state, payload, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.ID,
		snap.SubjectType,
		snap.SubjectID,
		nullable(snap.State),
		[]byte(snap.Payload),
		snap.CreatedAt.UnixNano(),
		nullable(snap.CreatedBy),
	)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Latest returns the most recent snapshot for a subject, or nil.
func (ss *SQLiteSnapshotStore) Latest(ctx context.Context, subjectType, subjectID string) (*Snapshot, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT id, subject_type, subject_id, state, payload, created_at, created_by
		 FROM snapshots
		 WHERE subject_type = ? AND subject_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		subjectType, subjectID,
	)
	return scanSQLiteSnapshot(row)
}

// LatestAtState returns the most recent snapshot at the given state label,
// or nil.
func (ss *SQLiteSnapshotStore) LatestAtState(ctx context.Context, subjectType, subjectID, state string) (*Snapshot, error) {
	row := ss.db.QueryRowContext(ctx,
		`SELECT id, subject_type, subject_id, state, payload, created_at, created_by
		 FROM snapshots
		 WHERE subject_type = ? AND subject_id = ? AND state = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		subjectType, subjectID, state,
	)
	return scanSQLiteSnapshot(row)
}

// List returns every snapshot for a subject, newest first.
func (ss *SQLiteSnapshotStore) List(ctx context.Context, subjectType, subjectID string) ([]Snapshot, error) {
	rows, err := ss.db.QueryContext(ctx,
		`SELECT id, subject_type, subject_id, state, payload, created_at, created_by
		 FROM snapshots
		 WHERE subject_type = ? AND subject_id = ?
		 ORDER BY created_at DESC, id DESC`,
		subjectType, subjectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		snap, err := scanSQLiteSnapshotRow(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *snap)
	}
	return snapshots, rows.Err()
}

func scanSQLiteSnapshotRow(r rowScanner) (*Snapshot, error) {
	var (
		snap      Snapshot
		state     sql.NullString
		createdBy sql.NullString
		payload   []byte
		createdAt int64
	)
	if err := r.Scan(&snap.ID, &snap.SubjectType, &snap.SubjectID, &state, &payload, &createdAt, &createdBy); err != nil {
		return nil, err
	}
	snap.State = state.String
	snap.CreatedBy = createdBy.String
	snap.Payload = json.RawMessage(payload)
	snap.CreatedAt = time.Unix(0, createdAt).UTC()
	return &snap, nil
}

func scanSQLiteSnapshot(row *sql.Row) (*Snapshot, error) {
	snap, err := scanSQLiteSnapshotRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}
