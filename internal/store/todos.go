package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/websmith-ai/websmith/pkg/types"
)

// ReplaceTodos atomically replaces the session's todo snapshot.
func (s *Store) ReplaceTodos(ctx context.Context, sessionID string, todos []types.Todo) error {
	data, err := json.Marshal(todos)
	if err != nil {
		return fmt.Errorf("failed to marshal todos: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO todo_snapshots (session_id, todos_json, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET
			todos_json = excluded.todos_json,
			updated_at = CURRENT_TIMESTAMP`,
		sessionID, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to replace todos: %w", err)
	}
	return nil
}

// ListTodos returns the session's todo snapshot. A session without a
// snapshot has an empty list.
func (s *Store) ListTodos(ctx context.Context, sessionID string) ([]types.Todo, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT todos_json FROM todo_snapshots WHERE session_id = ?`, sessionID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read todos: %w", err)
	}

	var todos []types.Todo
	if err := json.Unmarshal([]byte(data), &todos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal todos: %w", err)
	}
	return todos, nil
}

// PendingTodos returns the non-completed items of the snapshot in
// snapshot order.
func (s *Store) PendingTodos(ctx context.Context, sessionID string) ([]types.Todo, error) {
	todos, err := s.ListTodos(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var pending []types.Todo
	for _, t := range todos {
		if t.Status != types.TodoCompleted {
			pending = append(pending, t)
		}
	}
	return pending, nil
}

// RecentCompletedTodos returns up to k completed items, most recently
// listed first.
func (s *Store) RecentCompletedTodos(ctx context.Context, sessionID string, k int) ([]types.Todo, error) {
	todos, err := s.ListTodos(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var completed []types.Todo
	for i := len(todos) - 1; i >= 0 && len(completed) < k; i-- {
		if todos[i].Status == types.TodoCompleted {
			completed = append(completed, todos[i])
		}
	}
	return completed, nil
}
