package types

import "time"

// Session is a user-scoped workspace: one conversation, one sandbox
// directory, one todo list. The core only reads ownership and the
// public flag, and bumps UpdatedAt at turn end.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is the owner of sessions. The core only needs the identity;
// the credential surface around it is deliberately thin.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
