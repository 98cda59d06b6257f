package auth

import (
	"time"

	"github.com/farmatrack/farmatrack/internal/shared"
)

// User represents an authenticated user account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         shared.UserRole
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
