package domain

import (
	"context"
	"time"

	"go-kv-commerce/internal/response"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User is keyed by email; there is no separate id.
type User struct {
	Email        string     `json:"email"`
	PasswordHash string     `json:"passwordHash,omitempty"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// Sanitized returns a copy safe to hand to callers (password hash stripped).
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}

type CreateUserInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

type UserFilters struct {
	Role   string
	Search string // substring over name fields
}

type UserStats struct {
	Total          int            `json:"total"`
	ByRole         map[string]int `json:"byRole"`
	RecentlyActive int            `json:"recentlyActive"` // logged in within 30 days
}

type UserRepository interface {
	Create(ctx context.Context, in CreateUserInput) response.Envelope
	GetByEmail(ctx context.Context, email string) response.Envelope
	List(ctx context.Context, f UserFilters, opts ListOptions) response.Envelope
	Update(ctx context.Context, email string, patch map[string]any) response.Envelope
	SoftDelete(ctx context.Context, email string) response.Envelope
	HardDelete(ctx context.Context, email string) response.Envelope
	Statistics(ctx context.Context) response.Envelope
	ValidateCredentials(ctx context.Context, email, password string) response.Envelope
}
