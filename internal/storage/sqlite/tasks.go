package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/taskline/taskline/internal/types"
)

// CreateTask persists a recorded task. Tasks are immutable after creation
// except for the sync flag, which the pipeline never touches.
func (s *SQLiteStorage) CreateTask(ctx context.Context, task *types.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, action, priority, sender, environment, synced, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Action, task.Priority, task.Sender, task.Environment,
		task.Synced, task.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.ID, err)
	}
	return nil
}

// GetRecentTasks returns all tasks created at or after since, newest first.
// An empty result is a valid, common case.
func (s *SQLiteStorage) GetRecentTasks(ctx context.Context, since time.Time) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, priority, sender, environment, synced, created_at
		FROM tasks
		WHERE created_at >= ?
		ORDER BY created_at DESC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query recent tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		var t types.Task
		if err := rows.Scan(&t.ID, &t.Action, &t.Priority, &t.Sender,
			&t.Environment, &t.Synced, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}
