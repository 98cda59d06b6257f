package suppliers

import (
	"time"
)

// Supplier represents a supplier entity
type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListFilters narrows supplier listings.
type ListFilters struct {
	Search     string
	ActiveOnly bool
}
