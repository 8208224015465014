package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/websmith-ai/websmith/pkg/types"
)

// CreateMessage appends a message to a session's history and fills in
// the assigned ID and timestamp.
func (s *Store) CreateMessage(ctx context.Context, msg *types.Message) error {
	var toolCalls sql.NullString
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		toolCalls = sql.NullString{String: string(data), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, reasoning_content, tool_calls, tool_call_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.SessionID, string(msg.Role), msg.Content,
		nullString(msg.ReasoningContent), toolCalls, nullString(msg.ToolCallID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	msg.ID = id

	return s.db.QueryRowContext(ctx,
		`SELECT created_at FROM messages WHERE id = ?`, id,
	).Scan(&msg.CreatedAt)
}

// FinalizeAssistantMessage writes the assistant message's final
// content, reasoning, and tool calls at turn end.
func (s *Store) FinalizeAssistantMessage(ctx context.Context, msg *types.Message) error {
	var toolCalls sql.NullString
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		toolCalls = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET content = ?, reasoning_content = ?, tool_calls = ?
		WHERE id = ?`,
		msg.Content, nullString(msg.ReasoningContent), toolCalls, msg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize message: %w", err)
	}
	return nil
}

// ListMessages returns all messages of a session in insertion order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, reasoning_content, tool_calls, tool_call_id, created_at
		FROM messages WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*types.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// LatestAssistantMessage returns the most recent assistant message of
// a session, or ErrNotFound.
func (s *Store) LatestAssistantMessage(ctx context.Context, sessionID string) (*types.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, role, content, reasoning_content, tool_calls, tool_call_id, created_at
		FROM messages WHERE session_id = ? AND role = 'assistant'
		ORDER BY id DESC LIMIT 1`, sessionID)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return msg, err
}

// RecentSystemMessages returns the latest k system messages of a
// session, oldest first.
func (s *Store) RecentSystemMessages(ctx context.Context, sessionID string, k int) ([]*types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, reasoning_content, tool_calls, tool_call_id, created_at
		FROM (
			SELECT * FROM messages WHERE session_id = ? AND role = 'system'
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, sessionID, k)
	if err != nil {
		return nil, fmt.Errorf("failed to list system messages: %w", err)
	}
	defer rows.Close()

	var messages []*types.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetMessage returns a single message by ID within a session.
func (s *Store) GetMessage(ctx context.Context, sessionID string, id int64) (*types.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, role, content, reasoning_content, tool_calls, tool_call_id, created_at
		FROM messages WHERE session_id = ? AND id = ?`, sessionID, id)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return msg, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*types.Message, error) {
	var (
		msg        types.Message
		role       string
		reasoning  sql.NullString
		toolCalls  sql.NullString
		toolCallID sql.NullString
	)

	err := row.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content,
		&reasoning, &toolCalls, &toolCallID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	msg.Role = types.Role(role)
	msg.ReasoningContent = reasoning.String
	msg.ToolCallID = toolCallID.String

	if toolCalls.Valid && toolCalls.String != "" {
		if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool calls for message %d: %w", msg.ID, err)
		}
	}

	return &msg, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
