package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/example/memento/internal/infrastructure/store/migrations"
)

// PostgresSnapshotStore stores snapshots in PostgreSQL. The payload column
// is JSONB so historical field values stay queryable with the ->/->'
// operators outside this service.
type PostgresSnapshotStore struct {
	db *sql.DB
}

var _ SnapshotStoreInterface = (*PostgresSnapshotStore)(nil)

// NewPostgresSnapshotStore runs pending schema migrations and returns a
// store over the given connection. The caller owns closing db.
func NewPostgresSnapshotStore(db *sql.DB) (*PostgresSnapshotStore, error) {
	if err := migrations.Up(db); err != nil {
		return nil, err
	}
	return &PostgresSnapshotStore{db: db}, nil
}

// Append inserts a snapshot row. Rows are never updated afterwards.
func (ps *PostgresSnapshotStore) Append(ctx context.Context, subjectType, subjectID string, payload json.RawMessage, state, createdBy string) (*Snapshot, error) {
	snap := Snapshot{
		ID:          uuid.New().String(),
		SubjectType: subjectType,
		SubjectID:   subjectID,
		State:       state,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   createdBy,
	}

	_, err := ps.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, subject_type, subject_id, state, payload, created_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		snap.ID,
		snap.SubjectType,
		snap.SubjectID,
		nullable(snap.State),
		[]byte(snap.Payload),
		snap.CreatedAt,
		nullable(snap.CreatedBy),
	)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Latest returns the most recent snapshot for a subject, or nil.
func (ps *PostgresSnapshotStore) Latest(ctx context.Context, subjectType, subjectID string) (*Snapshot, error) {
	row := ps.db.QueryRowContext(ctx,
		`SELECT id, subject_type, subject_id, state, payload, created_at, created_by
		 FROM snapshots
		 WHERE subject_type = $1 AND subject_id = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		subjectType, subjectID,
	)
	return scanSnapshot(row)
}

// LatestAtState returns the most recent snapshot at the given state label,
// or nil.
func (ps *PostgresSnapshotStore) LatestAtState(ctx context.Context, subjectType, subjectID, state string) (*Snapshot, error) {
	row := ps.db.QueryRowContext(ctx,
		`SELECT id, subject_type, subject_id, state, payload, created_at, created_by
		 FROM snapshots
		 WHERE subject_type = $1 AND subject_id = $2 AND state = $3
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		subjectType, subjectID, state,
	)
	return scanSnapshot(row)
}

// List returns every snapshot for a subject, newest first.
func (ps *PostgresSnapshotStore) List(ctx context.Context, subjectType, subjectID string) ([]Snapshot, error) {
	rows, err := ps.db.QueryContext(ctx,
		`SELECT id, subject_type, subject_id, state, payload, created_at, created_by
		 FROM snapshots
		 WHERE subject_type = $1 AND subject_id = $2
		 ORDER BY created_at DESC, id DESC`,
		subjectType, subjectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		snap, err := scanSnapshotRow(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *snap)
	}
	return snapshots, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshotRow(r rowScanner) (*Snapshot, error) {
	var (
		snap      Snapshot
		state     sql.NullString
		createdBy sql.NullString
		payload   []byte
	)
	if err := r.Scan(&snap.ID, &snap.SubjectType, &snap.SubjectID, &state, &payload, &snap.CreatedAt, &createdBy); err != nil {
		return nil, err
	}
	snap.State = state.String
	snap.CreatedBy = createdBy.String
	snap.Payload = json.RawMessage(payload)
	return &snap, nil
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	snap, err := scanSnapshotRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ConnectPostgres establishes a pooled connection to PostgreSQL.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
