package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/websmith-ai/websmith/pkg/types"
)

// AppendStep records a new execution step and fills in the assigned ID
// and timestamps. Steps are append-only; the one exception is
// UpdateStepReasoning below.
func (s *Store) AppendStep(ctx context.Context, step *types.ExecutionStep) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_steps
			(session_id, message_id, user_id, iteration, status, reasoning_content,
			 tool_name, tool_arguments, tool_call_id, tool_result, tool_error, progress)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.SessionID, step.MessageID, step.UserID, step.Iteration, string(step.Status),
		nullString(step.ReasoningContent), nullString(step.ToolName),
		nullString(string(step.ToolArguments)), nullString(step.ToolCallID),
		nullString(step.ToolResult), nullString(step.ToolError), step.Progress,
	)
	if err != nil {
		return fmt.Errorf("failed to insert step: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	step.ID = id

	return s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM execution_steps WHERE id = ?`, id,
	).Scan(&step.CreatedAt, &step.UpdatedAt)
}

// UpdateStepReasoning grows the reasoning text of an in-flight thinking
// step in place as stream deltas arrive. Single-row update, idempotent
// on the final state.
func (s *Store) UpdateStepReasoning(ctx context.Context, stepID int64, reasoning string, progress float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE execution_steps
		SET reasoning_content = ?, progress = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		reasoning, progress, stepID,
	)
	if err != nil {
		return fmt.Errorf("failed to update step reasoning: %w", err)
	}
	return nil
}

// ListSteps returns all steps for a message in insertion order.
func (s *Store) ListSteps(ctx context.Context, sessionID string, messageID int64) ([]*types.ExecutionStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, message_id, user_id, iteration, status, reasoning_content,
		       tool_name, tool_arguments, tool_call_id, tool_result, tool_error, progress,
		       created_at, updated_at
		FROM execution_steps
		WHERE session_id = ? AND message_id = ?
		ORDER BY id ASC`, sessionID, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []*types.ExecutionStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// LatestStep returns the most recent step for a message, or ErrNotFound.
func (s *Store) LatestStep(ctx context.Context, messageID int64) (*types.ExecutionStep, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, message_id, user_id, iteration, status, reasoning_content,
		       tool_name, tool_arguments, tool_call_id, tool_result, tool_error, progress,
		       created_at, updated_at
		FROM execution_steps
		WHERE message_id = ?
		ORDER BY id DESC LIMIT 1`, messageID)

	step, err := scanStep(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return step, err
}

func scanStep(row rowScanner) (*types.ExecutionStep, error) {
	var (
		step       types.ExecutionStep
		status     string
		reasoning  sql.NullString
		toolName   sql.NullString
		toolArgs   sql.NullString
		toolCallID sql.NullString
		toolResult sql.NullString
		toolError  sql.NullString
	)

	err := row.Scan(&step.ID, &step.SessionID, &step.MessageID, &step.UserID,
		&step.Iteration, &status, &reasoning, &toolName, &toolArgs, &toolCallID,
		&toolResult, &toolError, &step.Progress, &step.CreatedAt, &step.UpdatedAt)
	if err != nil {
		return nil, err
	}

	step.Status = types.StepStatus(status)
	step.ReasoningContent = reasoning.String
	step.ToolName = toolName.String
	step.ToolCallID = toolCallID.String
	step.ToolResult = toolResult.String
	step.ToolError = toolError.String
	if toolArgs.Valid && toolArgs.String != "" {
		step.ToolArguments = json.RawMessage(toolArgs.String)
	}

	return &step, nil
}
