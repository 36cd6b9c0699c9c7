package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run ID is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// Run is one local worker process lifetime.
type Run struct {
	ID         string
	Binary     string
	PID        int
	StartedAt  time.Time
	EndedAt    *time.Time
	ExitCode   *int
	Unexpected bool
	Stderr     string
}

// Active reports whether the run has no recorded end.
func (r Run) Active() bool {
	return r.EndedAt == nil
}

// RunStore reads and writes the worker_runs table.
type RunStore struct {
	db *sql.DB
}

// NewRunStore wraps an open ledger database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Begin records a started worker and returns the new run ID.
func (s *RunStore) Begin(ctx context.Context, binary string, pid int, at time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO worker_runs(id, binary, pid, started_at) VALUES(?, ?, ?, ?);`,
		id, binary, pid, at.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// End records the exit of a run.
func (s *RunStore) End(ctx context.Context, id string, at time.Time, exitCode int, unexpected bool, stderr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE worker_runs SET ended_at = ?, exit_code = ?, unexpected = ?, stderr = ? WHERE id = ? AND ended_at IS NULL;`,
		at.UTC().Format(timeLayout), exitCode, unexpected, nullIfEmpty(stderr), id,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("end run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// CloseOrphans marks runs left open by a controller that died as unexpected.
func (s *RunStore) CloseOrphans(ctx context.Context, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE worker_runs SET ended_at = ?, unexpected = 1 WHERE ended_at IS NULL;`,
		at.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("close orphan runs: %w", err)
	}
	return res.RowsAffected()
}

// List returns the most recent runs, newest first. limit <= 0 means all.
func (s *RunStore) List(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, binary, pid, started_at, ended_at, exit_code, unexpected, stderr
FROM worker_runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			startedAt  string
			endedAt    sql.NullString
			exitCode   sql.NullInt64
			unexpected int
			stderr     sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Binary, &r.PID, &startedAt, &endedAt, &exitCode, &unexpected, &stderr); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at of run %s: %w", r.ID, err)
		}
		if endedAt.Valid {
			t, err := time.Parse(timeLayout, endedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse ended_at of run %s: %w", r.ID, err)
			}
			r.EndedAt = &t
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			r.ExitCode = &code
		}
		r.Unexpected = unexpected != 0
		r.Stderr = stderr.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
