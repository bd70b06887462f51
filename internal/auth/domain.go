package auth

import (
	"time"

	"github.com/mxstorebi/mxstorebi/internal/shared"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         shared.Role
	IsActive     bool
	LastLoginAt  *time.Time
}
