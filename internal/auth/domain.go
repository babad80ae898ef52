package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSummary is the public view of a user together with its permissions.
type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	Permissions []string  `json:"permissions"`
}

// AuthResult is returned by login and register.
type AuthResult struct {
	AccessToken string      `json:"access_token"`
	User        UserSummary `json:"user"`
}
