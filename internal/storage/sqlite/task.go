package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/slok/fxtask/internal/model"
	"github.com/slok/fxtask/internal/storage"
)

const taskColumns = `
	id, effect_id, status, progress,
	error, error_code, results, poll_attempts,
	created_at, updated_at, last_polled_at
`

// SaveTask upserts a task.
func (r *Repository) SaveTask(ctx context.Context, t model.Task) error {
	if t.ID == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	results := t.Results
	if results == nil {
		results = []string{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("could not marshal results: %w", err)
	}

	var lastPolledAt *int64
	if t.LastPolledAt != nil {
		ms := t.LastPolledAt.UnixMilli()
		lastPolledAt = &ms
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			effect_id = excluded.effect_id,
			status = excluded.status,
			progress = excluded.progress,
			error = excluded.error,
			error_code = excluded.error_code,
			results = excluded.results,
			poll_attempts = excluded.poll_attempts,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			last_polled_at = excluded.last_polled_at
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.EffectID,
		t.Status,
		t.Progress,
		t.Error,
		t.ErrorCode,
		string(resultsJSON),
		t.PollAttempts,
		t.CreatedAt.UnixMilli(),
		t.UpdatedAt.UnixMilli(),
		lastPolledAt,
	)
	if err != nil {
		return fmt.Errorf("could not save task: %w", err)
	}

	r.logger.Debugf("Saved task in repository: %s", t.ID)
	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}

	return &t, nil
}

// ListTasks returns the tasks that match the options, newest first.
func (r *Repository) ListTasks(ctx context.Context, opts storage.ListTasksOpts) ([]model.Task, error) {
	var (
		where []string
		args  []any
	)
	if opts.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *opts.Status)
	}
	if opts.EffectID != "" {
		where = append(where, "effect_id = ?")
		args = append(args, opts.EffectID)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

// DeleteTask deletes a task.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	r.logger.Debugf("Deleted task from repository: %s", id)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (model.Task, error) {
	var (
		t            model.Task
		resultsJSON  string
		createdAt    int64
		updatedAt    int64
		lastPolledAt sql.NullInt64
	)

	err := s.Scan(
		&t.ID,
		&t.EffectID,
		&t.Status,
		&t.Progress,
		&t.Error,
		&t.ErrorCode,
		&resultsJSON,
		&t.PollAttempts,
		&createdAt,
		&updatedAt,
		&lastPolledAt,
	)
	if err != nil {
		return model.Task{}, err
	}

	if err := json.Unmarshal([]byte(resultsJSON), &t.Results); err != nil {
		return model.Task{}, fmt.Errorf("could not unmarshal results: %w", err)
	}
	if len(t.Results) == 0 {
		t.Results = nil
	}

	t.CreatedAt = timeFromUnixMilli(createdAt)
	t.UpdatedAt = timeFromUnixMilli(updatedAt)
	if lastPolledAt.Valid {
		lp := timeFromUnixMilli(lastPolledAt.Int64)
		t.LastPolledAt = &lp
	}

	return t, nil
}
