// Package store persists the invocation audit log: one row per handler
// invocation, written by the worker pool and read by the status API.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Invocation is one completed handler run.
type Invocation struct {
	ID         string
	Kind       string
	Hook       string
	Status     Status
	Error      *string
	Sender     string
	User       string
	Command    string
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record appends one invocation row.
func (s *Store) Record(ctx context.Context, inv Invocation) error {
	if inv.ID == "" {
		return fmt.Errorf("invocation id is empty")
	}
	if inv.Status != StatusSucceeded && inv.Status != StatusFailed {
		return fmt.Errorf("invalid invocation status: %q", inv.Status)
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO invocation_log(
  id, kind, hook, status, error, sender, user_nick, command, message, started_at, finished_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		inv.ID, inv.Kind, inv.Hook, inv.Status, inv.Error,
		inv.Sender, inv.User, inv.Command, inv.Message,
		inv.StartedAt.UTC().Format(time.RFC3339Nano),
		inv.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record invocation: %w", err)
	}
	return nil
}

// Recent returns the newest invocations, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Invocation, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, kind, hook, status, error, sender, user_nick, command, message, started_at, finished_at
FROM invocation_log
ORDER BY started_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var out []Invocation
	for rows.Next() {
		var (
			inv        Invocation
			statusS    string
			errS       sql.NullString
			messageS   sql.NullString
			startedS   string
			finishedS  string
		)
		if err := rows.Scan(
			&inv.ID, &inv.Kind, &inv.Hook, &statusS, &errS,
			&inv.Sender, &inv.User, &inv.Command, &messageS,
			&startedS, &finishedS,
		); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		inv.Status = Status(statusS)
		if errS.Valid {
			inv.Error = &errS.String
		}
		if messageS.Valid {
			inv.Message = messageS.String
		}
		if t, err := time.Parse(time.RFC3339Nano, startedS); err == nil {
			inv.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, finishedS); err == nil {
			inv.FinishedAt = t
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return out, nil
}

// Prune deletes rows older than cutoff, returning the number removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM invocation_log WHERE started_at < ?;`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("prune invocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return n, nil
}
