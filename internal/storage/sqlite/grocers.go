package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/uninter-labs/grocerpoints/internal/models"
	"github.com/uninter-labs/grocerpoints/internal/storage"
)

// CreateGrocer persists a new grocer to the database.
func (s *SQLiteStore) CreateGrocer(ctx context.Context, grocer *models.Grocer) error {
	// Generate ID if not set
	if grocer.ID == "" {
		grocer.ID = uuid.New().String()
	}
	if grocer.CreatedAt == 0 {
		grocer.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO grocers (id, name, location, received_points, created_at) VALUES (?, ?, ?, ?, ?)",
		grocer.ID, grocer.Name, grocer.Location, grocer.ReceivedPoints, grocer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert grocer: %w", err)
	}

	return nil
}

// GetGrocer retrieves a grocer by ID.
func (s *SQLiteStore) GetGrocer(ctx context.Context, id string) (*models.Grocer, error) {
	grocer := &models.Grocer{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, location, received_points, created_at FROM grocers WHERE id = ?",
		id,
	).Scan(&grocer.ID, &grocer.Name, &grocer.Location, &grocer.ReceivedPoints, &grocer.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Grocer not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grocer: %w", err)
	}

	return grocer, nil
}

// ListGrocers retrieves all grocers ordered by name.
func (s *SQLiteStore) ListGrocers(ctx context.Context) ([]*models.Grocer, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, location, received_points, created_at FROM grocers ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list grocers: %w", err)
	}
	defer rows.Close()

	var grocers []*models.Grocer
	for rows.Next() {
		grocer := &models.Grocer{}
		if err := rows.Scan(&grocer.ID, &grocer.Name, &grocer.Location, &grocer.ReceivedPoints, &grocer.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grocer: %w", err)
		}
		grocers = append(grocers, grocer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grocers: %w", err)
	}

	return grocers, nil
}

// UpdateGrocer changes a grocer's name and location. The denormalized name on
// existing allocations is refreshed in the same transaction so listings stay
// consistent with the grocer record.
func (s *SQLiteStore) UpdateGrocer(ctx context.Context, grocer *models.Grocer) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE grocers SET name = ?, location = ? WHERE id = ?",
			grocer.Name, grocer.Location, grocer.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update grocer: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check affected rows: %w", err)
		}
		if affected == 0 {
			return storage.ErrGrocerNotFound
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE allocations SET grocer_name = ? WHERE grocer_id = ?",
			grocer.Name, grocer.ID,
		); err != nil {
			return fmt.Errorf("failed to refresh allocation grocer names: %w", err)
		}

		return nil
	})
}

// DeleteGrocer removes a grocer by ID. Allocations referencing the grocer are
// deleted by the foreign key cascade; the points they held are returned to the
// owning users' available balances first so nothing is lost.
func (s *SQLiteStore) DeleteGrocer(ctx context.Context, id string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM grocers WHERE id = ?", id).Scan(&exists)
		if err == sql.ErrNoRows {
			return storage.ErrGrocerNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check grocer existence: %w", err)
		}

		now := time.Now().Unix()
		if _, err := tx.ExecContext(ctx, `
			UPDATE users
			SET available_points = available_points + (
				SELECT points FROM allocations WHERE user_id = users.id AND grocer_id = ?
			), updated_at = ?
			WHERE id IN (SELECT user_id FROM allocations WHERE grocer_id = ?)`,
			id, now, id,
		); err != nil {
			return fmt.Errorf("failed to refund allocated points: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM grocers WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete grocer: %w", err)
		}

		return nil
	})
}
