package models

// Allocation represents the current non-negative point total one user has
// assigned to one grocer. At most one allocation exists per (user, grocer)
// pair; an allocation whose points drop to zero is deleted rather than kept.
type Allocation struct {
	// UserID is the user who made the allocation.
	UserID string

	// GrocerID is the grocer receiving the points.
	GrocerID string

	// GrocerName is a denormalized copy of the grocer's display name,
	// stored at creation time so listings avoid a join per row.
	GrocerName string

	// Points is the current total assigned by the user to this grocer.
	// Always positive for a persisted allocation.
	Points int64

	// CreatedAt is the Unix timestamp when the allocation was first created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last points change.
	UpdatedAt int64
}

// ReallocationResult is the outcome of a committed reallocation.
type ReallocationResult struct {
	// NewAvailable is the user's available balance after the commit.
	NewAvailable int64

	// Allocation is the post-commit allocation record, or nil when the
	// reallocation set the points to zero and removed the record.
	Allocation *Allocation
}
