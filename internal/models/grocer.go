package models

// Grocer represents a participating merchant that can receive points.
type Grocer struct {
	// ID is the unique identifier for the grocer (UUID format).
	ID string

	// Name is the unique display name of the grocer.
	Name string

	// Location is a free-form address or area description.
	Location string

	// ReceivedPoints is the sum of points currently allocated to this grocer
	// by all users. Maintained by the reallocation transaction; equal to the
	// sum of Allocation.Points referencing this grocer after every commit.
	ReceivedPoints int64

	// CreatedAt is the Unix timestamp when the grocer was registered.
	CreatedAt int64
}
