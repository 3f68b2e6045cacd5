package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uninter-labs/grocerpoints/internal/models"
	"github.com/uninter-labs/grocerpoints/internal/storage"
)

// Reallocate sets the user's allocation to the grocer to requestedPoints
// inside a single write transaction:
//
//  1. Load the user and grocer; missing either aborts with a not-found error.
//  2. Load the existing allocation, if any; delta = requested - old.
//  3. A positive delta spends new points and must fit the available balance.
//  4. Move delta between the user's available balance and the grocer's
//     received total, then create, update or delete the allocation row
//     (requestedPoints of zero deletes it, no zero-point rows persist).
//
// Any failure rolls the whole transaction back; on success the returned result
// carries the committed balance and allocation (nil when deleted).
func (s *SQLiteStore) Reallocate(ctx context.Context, userID, grocerID string, requestedPoints int64) (*models.ReallocationResult, error) {
	if requestedPoints < 0 {
		return nil, fmt.Errorf("requested points must be non-negative, got %d", requestedPoints)
	}

	var result *models.ReallocationResult
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = reallocateTx(ctx, tx, userID, grocerID, requestedPoints)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func reallocateTx(ctx context.Context, tx *sql.Tx, userID, grocerID string, requestedPoints int64) (*models.ReallocationResult, error) {
	// Load the user's balance
	var available int64
	err := tx.QueryRowContext(ctx,
		"SELECT available_points FROM users WHERE id = ?", userID,
	).Scan(&available)
	if err == sql.ErrNoRows {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user balance: %w", err)
	}

	// Load the grocer's received total and name
	var received int64
	var grocerName string
	err = tx.QueryRowContext(ctx,
		"SELECT received_points, name FROM grocers WHERE id = ?", grocerID,
	).Scan(&received, &grocerName)
	if err == sql.ErrNoRows {
		return nil, storage.ErrGrocerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load grocer: %w", err)
	}

	// Load the existing allocation, if any
	allocation := &models.Allocation{}
	var oldPoints int64
	haveAllocation := true
	err = tx.QueryRowContext(ctx,
		"SELECT points, created_at FROM allocations WHERE user_id = ? AND grocer_id = ?",
		userID, grocerID,
	).Scan(&oldPoints, &allocation.CreatedAt)
	if err == sql.ErrNoRows {
		haveAllocation = false
	} else if err != nil {
		return nil, fmt.Errorf("failed to load allocation: %w", err)
	}

	delta := requestedPoints - oldPoints

	// Only spending new points requires a balance check; reducing or zeroing
	// an allocation always succeeds.
	if delta > 0 && available < delta {
		return nil, &storage.InsufficientPointsError{Available: available, Required: delta}
	}

	now := time.Now().Unix()
	newAvailable := available - delta
	newReceived := received + delta

	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET available_points = ?, updated_at = ? WHERE id = ?",
		newAvailable, now, userID,
	); err != nil {
		return nil, fmt.Errorf("failed to update user balance: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE grocers SET received_points = ? WHERE id = ?",
		newReceived, grocerID,
	); err != nil {
		return nil, fmt.Errorf("failed to update grocer total: %w", err)
	}

	switch {
	case requestedPoints == 0 && haveAllocation:
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM allocations WHERE user_id = ? AND grocer_id = ?",
			userID, grocerID,
		); err != nil {
			return nil, fmt.Errorf("failed to delete allocation: %w", err)
		}
		allocation = nil

	case requestedPoints == 0:
		// No prior allocation and none requested: a legal no-op.
		allocation = nil

	case haveAllocation:
		if _, err := tx.ExecContext(ctx,
			"UPDATE allocations SET points = ?, updated_at = ? WHERE user_id = ? AND grocer_id = ?",
			requestedPoints, now, userID, grocerID,
		); err != nil {
			return nil, fmt.Errorf("failed to update allocation: %w", err)
		}
		allocation.UserID = userID
		allocation.GrocerID = grocerID
		allocation.GrocerName = grocerName
		allocation.Points = requestedPoints
		allocation.UpdatedAt = now

	default:
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO allocations (user_id, grocer_id, points, grocer_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			userID, grocerID, requestedPoints, grocerName, now, now,
		); err != nil {
			return nil, fmt.Errorf("failed to insert allocation: %w", err)
		}
		allocation = &models.Allocation{
			UserID:     userID,
			GrocerID:   grocerID,
			GrocerName: grocerName,
			Points:     requestedPoints,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	return &models.ReallocationResult{
		NewAvailable: newAvailable,
		Allocation:   allocation,
	}, nil
}

// ListAllocations retrieves all of the user's current allocations.
func (s *SQLiteStore) ListAllocations(ctx context.Context, userID string) ([]*models.Allocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, grocer_id, points, grocer_name, created_at, updated_at
		 FROM allocations WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	var allocations []*models.Allocation
	for rows.Next() {
		allocation := &models.Allocation{}
		if err := rows.Scan(
			&allocation.UserID,
			&allocation.GrocerID,
			&allocation.Points,
			&allocation.GrocerName,
			&allocation.CreatedAt,
			&allocation.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, allocation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allocations: %w", err)
	}

	return allocations, nil
}
