package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/nbexec/internal/apperr"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one row of the ledger.
type Run struct {
	ID         int64
	Input      string
	Output     string
	Checksum   string
	Status     string
	Executed   int
	Skipped    int
	Failed     int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder is the write side of the ledger used by the pipeline.
type Recorder interface {
	Record(ctx context.Context, r Run) (int64, error)
}

// Verify *DB satisfies Recorder at compile time.
var _ Recorder = (*DB)(nil)

// Record inserts a finished run and returns its id.
func (db *DB) Record(ctx context.Context, r Run) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO runs (input, output, checksum, status, executed, skipped, failed, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Input, r.Output, r.Checksum, r.Status, r.Executed, r.Skipped, r.Failed, r.Error,
		r.StartedAt.UTC(), r.FinishedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("history: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: last insert id: %w", err)
	}
	return id, nil
}

const selectRun = `SELECT id, input, output, checksum, status, executed, skipped, failed, error, started_at, finished_at FROM runs`

// Recent returns up to limit runs, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, selectRun+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Last returns the newest run for input, or apperr.ErrNotFound.
func (db *DB) Last(ctx context.Context, input string) (*Run, error) {
	row := db.conn.QueryRowContext(ctx, selectRun+` WHERE input = ? ORDER BY id DESC LIMIT 1`, input)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	err := s.Scan(&r.ID, &r.Input, &r.Output, &r.Checksum, &r.Status,
		&r.Executed, &r.Skipped, &r.Failed, &r.Error, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("history: scan run: %w", err)
	}
	return r, nil
}
