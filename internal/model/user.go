package model

import "time"

// User is a locally registered account. UID is the stable string identifier
// shared with the remote directory; the integer ID never leaves this device.
type User struct {
	ID           int64     `json:"id"`
	UID          string    `json:"uid"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
