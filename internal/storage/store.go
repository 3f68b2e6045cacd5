// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/uninter-labs/grocerpoints/internal/models"
)

var (
	// ErrUserNotFound indicates that the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrGrocerNotFound indicates that the referenced grocer does not exist.
	ErrGrocerNotFound = errors.New("grocer not found")

	// ErrBusy indicates that a write transaction repeatedly lost the race for
	// the database lock. The operation had no effect and may be retried.
	ErrBusy = errors.New("storage busy, retry the operation")
)

// InsufficientPointsError is returned when a reallocation would spend more
// points than the user has available. The failed transaction has no effect.
type InsufficientPointsError struct {
	Available int64
	Required  int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: available %d, required %d", e.Available, e.Required)
}

// Store defines the interface for points storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateUser persists a new user.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID retrieves a user by ID.
	// Returns nil with no error if the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUserByUsername retrieves a user by login name.
	// Returns nil with no error if the user does not exist.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// ListUsers retrieves all users.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// CountUsers returns the number of registered users.
	CountUsers(ctx context.Context) (int64, error)

	// SetUserPoints directly sets a user's available balance (administrative
	// reset). Returns ErrUserNotFound if the user does not exist.
	SetUserPoints(ctx context.Context, userID string, points int64) (*models.User, error)

	// CreateGrocer persists a new grocer, generating ID and CreatedAt.
	CreateGrocer(ctx context.Context, grocer *models.Grocer) error

	// GetGrocer retrieves a grocer by ID.
	// Returns nil with no error if the grocer does not exist.
	GetGrocer(ctx context.Context, id string) (*models.Grocer, error)

	// ListGrocers retrieves all grocers.
	ListGrocers(ctx context.Context) ([]*models.Grocer, error)

	// UpdateGrocer changes a grocer's name and location.
	// Returns ErrGrocerNotFound if the grocer does not exist.
	UpdateGrocer(ctx context.Context, grocer *models.Grocer) error

	// DeleteGrocer removes a grocer by ID.
	// Returns ErrGrocerNotFound if the grocer does not exist.
	DeleteGrocer(ctx context.Context, id string) error

	// Reallocate sets the user's allocation to the grocer to requestedPoints,
	// moving the delta between the user's available balance and the grocer's
	// received total in a single atomic transaction. requestedPoints must be
	// non-negative; a requestedPoints of zero deletes the allocation record.
	// Returns ErrUserNotFound, ErrGrocerNotFound, *InsufficientPointsError or
	// ErrBusy; on any error no state changes.
	Reallocate(ctx context.Context, userID, grocerID string, requestedPoints int64) (*models.ReallocationResult, error)

	// ListAllocations retrieves the user's current allocations.
	// Plain snapshot read, no ordering guarantee.
	ListAllocations(ctx context.Context, userID string) ([]*models.Allocation, error)

	// Close releases any resources held by the store.
	Close() error
}
