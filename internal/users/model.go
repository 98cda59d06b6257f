package users

import (
	"time"

	"github.com/farmatrack/farmatrack/internal/shared"
)

// User is the administrative view of an account. The password hash never
// leaves the repository layer.
type User struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Role      shared.UserRole `json:"role"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// CreateUserInput carries a new account request.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     shared.UserRole
}
