package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles a user account can hold. Only admins may manage accounts and grocers.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Username is the unique login name.
	Username string

	// Name is the display name of the user.
	Name string

	// PasswordHash is the bcrypt hash of the user's password.
	// Never serialized in API responses.
	PasswordHash string

	// Role is either RoleUser or RoleAdmin.
	Role string

	// AvailablePoints is the pool of points the user has earned and not yet
	// allocated to any grocer. Mutated only by the reallocation transaction,
	// or directly by an administrative reset. Never negative.
	AvailablePoints int64

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last modification.
	UpdatedAt int64
}

// NewUser creates a user with a fresh ID and timestamps.
// The caller is responsible for hashing the password.
func NewUser(username, name, role, passwordHash string) *User {
	now := time.Now().Unix()
	if role == "" {
		role = RoleUser
	}
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		Name:         name,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
