package model

import "time"

// Session is a logged-in portal user, backed by the Absher backend's
// login endpoint. UserID and UserName are both backend-issued; a row
// with either one empty is partial and must be treated as logged out.
type Session struct {
	ID        string    `db:"id" json:"id"`
	TokenHash string    `db:"token_hash" json:"-"`
	UserID    string    `db:"user_id" json:"userId"`
	UserName  string    `db:"user_name" json:"userName"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Partial reports whether the session is missing one of its required
// identity fields. Partial sessions are invalid and get cleared on read.
func (s *Session) Partial() bool {
	return s.UserID == "" || s.UserName == ""
}

type CreateSessionParams struct {
	TokenHash string
	UserID    string
	UserName  string
	ExpiresAt time.Time
}
