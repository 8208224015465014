package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/websmith-ai/websmith/pkg/types"
)

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, sess *types.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, title, public)
		VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Title, boolToInt(sess.Public),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM sessions WHERE id = ?`, sess.ID,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
}

// GetSession returns a session by ID, or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*types.Session, error) {
	var (
		sess   types.Session
		public int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, public, created_at, updated_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.Title, &public, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	sess.Public = public != 0
	return &sess, nil
}

// ListSessions returns all sessions of a user, newest first.
func (s *Store) ListSessions(ctx context.Context, userID int64) ([]*types.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, public, created_at, updated_at
		FROM sessions WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		var (
			sess   types.Session
			public int
		)
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title, &public,
			&sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		sess.Public = public != 0
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// TouchSession bumps a session's updated_at. Called at turn end.
func (s *Store) TouchSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// DeleteSession removes a session and its dependent rows.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM execution_steps WHERE session_id = ?`,
		`DELETE FROM messages WHERE session_id = ?`,
		`DELETE FROM todo_snapshots WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}

	return tx.Commit()
}

// UpdateSession persists title and public-flag changes.
func (s *Store) UpdateSession(ctx context.Context, sess *types.Session) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET title = ?, public = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		sess.Title, boolToInt(sess.Public), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM sessions WHERE id = ?`, sess.ID,
	).Scan(&sess.UpdatedAt)
}

// CreateUser inserts a user row, filling in the assigned ID.
func (s *Store) CreateUser(ctx context.Context, user *types.User) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		user.Username, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id

	return s.db.QueryRowContext(ctx,
		`SELECT created_at FROM users WHERE id = ?`, id,
	).Scan(&user.CreatedAt)
}

// GetUserByName returns a user by username, or ErrNotFound.
func (s *Store) GetUserByName(ctx context.Context, username string) (*types.User, error) {
	var user types.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	return &user, nil
}

// GetUser returns a user by ID, or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id int64) (*types.User, error) {
	var user types.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	return &user, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
