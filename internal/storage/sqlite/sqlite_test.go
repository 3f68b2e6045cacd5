package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/uninter-labs/grocerpoints/internal/models"
	"github.com/uninter-labs/grocerpoints/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "grocerpoints-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func createTestUser(t *testing.T, store *SQLiteStore, username string, points int64) *models.User {
	t.Helper()

	user := models.NewUser(username, "Test "+username, models.RoleUser, "not-a-real-hash")
	user.AvailablePoints = points
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func createTestGrocer(t *testing.T, store *SQLiteStore, name string) *models.Grocer {
	t.Helper()

	grocer := &models.Grocer{Name: name, Location: "Market Street"}
	if err := store.CreateGrocer(context.Background(), grocer); err != nil {
		t.Fatalf("CreateGrocer failed: %v", err)
	}
	return grocer
}

// sumAllocations returns the total points the user currently has allocated.
func sumAllocations(t *testing.T, store *SQLiteStore, userID string) int64 {
	t.Helper()

	allocations, err := store.ListAllocations(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListAllocations failed: %v", err)
	}
	var sum int64
	for _, a := range allocations {
		if a.Points <= 0 {
			t.Errorf("Found persisted allocation with non-positive points: %+v", a)
		}
		sum += a.Points
	}
	return sum
}

func mustGetUser(t *testing.T, store *SQLiteStore, id string) *models.User {
	t.Helper()

	user, err := store.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if user == nil {
		t.Fatalf("User %s not found", id)
	}
	return user
}

func mustGetGrocer(t *testing.T, store *SQLiteStore, id string) *models.Grocer {
	t.Helper()

	grocer, err := store.GetGrocer(context.Background(), id)
	if err != nil {
		t.Fatalf("GetGrocer failed: %v", err)
	}
	if grocer == nil {
		t.Fatalf("Grocer %s not found", id)
	}
	return grocer
}

func TestReallocate(t *testing.T) {
	ctx := context.Background()

	t.Run("create, reduce, zero out", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "alice", 100)
		grocer := createTestGrocer(t, store, "Corner Market")

		// First allocation: 30 points
		result, err := store.Reallocate(ctx, user.ID, grocer.ID, 30)
		if err != nil {
			t.Fatalf("Reallocate failed: %v", err)
		}
		if result.NewAvailable != 70 {
			t.Errorf("NewAvailable = %d, want 70", result.NewAvailable)
		}
		if result.Allocation == nil || result.Allocation.Points != 30 {
			t.Fatalf("Expected allocation with 30 points, got %+v", result.Allocation)
		}
		if result.Allocation.GrocerName != "Corner Market" {
			t.Errorf("GrocerName = %q, want %q", result.Allocation.GrocerName, "Corner Market")
		}
		if got := mustGetGrocer(t, store, grocer.ID).ReceivedPoints; got != 30 {
			t.Errorf("ReceivedPoints = %d, want 30", got)
		}

		// Reduce to 10: delta -20 gives points back
		result, err = store.Reallocate(ctx, user.ID, grocer.ID, 10)
		if err != nil {
			t.Fatalf("Reallocate failed: %v", err)
		}
		if result.NewAvailable != 90 {
			t.Errorf("NewAvailable = %d, want 90", result.NewAvailable)
		}
		if result.Allocation == nil || result.Allocation.Points != 10 {
			t.Fatalf("Expected allocation with 10 points, got %+v", result.Allocation)
		}
		if got := mustGetGrocer(t, store, grocer.ID).ReceivedPoints; got != 10 {
			t.Errorf("ReceivedPoints = %d, want 10", got)
		}

		// Zero out: record is deleted
		result, err = store.Reallocate(ctx, user.ID, grocer.ID, 0)
		if err != nil {
			t.Fatalf("Reallocate failed: %v", err)
		}
		if result.NewAvailable != 100 {
			t.Errorf("NewAvailable = %d, want 100", result.NewAvailable)
		}
		if result.Allocation != nil {
			t.Errorf("Expected allocation to be deleted, got %+v", result.Allocation)
		}
		allocations, err := store.ListAllocations(ctx, user.ID)
		if err != nil {
			t.Fatalf("ListAllocations failed: %v", err)
		}
		if len(allocations) != 0 {
			t.Errorf("Expected no allocations, got %d", len(allocations))
		}
	})

	t.Run("insufficient points leaves state untouched", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "bob", 5)
		grocer := createTestGrocer(t, store, "Fresh Foods")

		_, err := store.Reallocate(ctx, user.ID, grocer.ID, 20)
		var insufficient *storage.InsufficientPointsError
		if !errors.As(err, &insufficient) {
			t.Fatalf("Expected InsufficientPointsError, got %v", err)
		}
		if insufficient.Available != 5 || insufficient.Required != 20 {
			t.Errorf("Error fields = available %d, required %d; want 5, 20",
				insufficient.Available, insufficient.Required)
		}

		if got := mustGetUser(t, store, user.ID).AvailablePoints; got != 5 {
			t.Errorf("AvailablePoints = %d, want 5 (unchanged)", got)
		}
		if got := mustGetGrocer(t, store, grocer.ID).ReceivedPoints; got != 0 {
			t.Errorf("ReceivedPoints = %d, want 0 (unchanged)", got)
		}
		if sum := sumAllocations(t, store, user.ID); sum != 0 {
			t.Errorf("Allocation sum = %d, want 0", sum)
		}
	})

	t.Run("sufficiency only checks the delta", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "carol", 50)
		grocer := createTestGrocer(t, store, "Daily Greens")

		if _, err := store.Reallocate(ctx, user.ID, grocer.ID, 50); err != nil {
			t.Fatalf("Reallocate failed: %v", err)
		}
		// Balance is 0, but lowering the allocation must still succeed.
		result, err := store.Reallocate(ctx, user.ID, grocer.ID, 20)
		if err != nil {
			t.Fatalf("Reallocate failed: %v", err)
		}
		if result.NewAvailable != 30 {
			t.Errorf("NewAvailable = %d, want 30", result.NewAvailable)
		}
	})

	t.Run("unknown user or grocer", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "dave", 100)
		grocer := createTestGrocer(t, store, "Night Owl Deli")

		if _, err := store.Reallocate(ctx, "no-such-user", grocer.ID, 10); !errors.Is(err, storage.ErrUserNotFound) {
			t.Errorf("Expected ErrUserNotFound, got %v", err)
		}
		if _, err := store.Reallocate(ctx, user.ID, "no-such-grocer", 10); !errors.Is(err, storage.ErrGrocerNotFound) {
			t.Errorf("Expected ErrGrocerNotFound, got %v", err)
		}
		if got := mustGetUser(t, store, user.ID).AvailablePoints; got != 100 {
			t.Errorf("AvailablePoints = %d, want 100 (unchanged)", got)
		}
	})

	t.Run("repeat with same value is idempotent", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "erin", 100)
		grocer := createTestGrocer(t, store, "Spice Corner")

		first, err := store.Reallocate(ctx, user.ID, grocer.ID, 40)
		if err != nil {
			t.Fatalf("Reallocate failed: %v", err)
		}
		second, err := store.Reallocate(ctx, user.ID, grocer.ID, 40)
		if err != nil {
			t.Fatalf("Repeat Reallocate failed: %v", err)
		}
		if first.NewAvailable != second.NewAvailable {
			t.Errorf("NewAvailable differs: first %d, second %d", first.NewAvailable, second.NewAvailable)
		}
		if second.Allocation == nil || second.Allocation.Points != 40 {
			t.Errorf("Expected allocation points 40, got %+v", second.Allocation)
		}
		if got := mustGetGrocer(t, store, grocer.ID).ReceivedPoints; got != 40 {
			t.Errorf("ReceivedPoints = %d, want 40", got)
		}
	})

	t.Run("zero with no prior allocation is a no-op", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "frank", 100)
		grocer := createTestGrocer(t, store, "Harbor Fish")

		result, err := store.Reallocate(ctx, user.ID, grocer.ID, 0)
		if err != nil {
			t.Fatalf("Reallocate failed: %v", err)
		}
		if result.NewAvailable != 100 {
			t.Errorf("NewAvailable = %d, want 100", result.NewAvailable)
		}
		if result.Allocation != nil {
			t.Errorf("Expected nil allocation, got %+v", result.Allocation)
		}
	})

	t.Run("negative request is rejected before any state change", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "gail", 100)
		grocer := createTestGrocer(t, store, "Ten Fingers Bakery")

		if _, err := store.Reallocate(ctx, user.ID, grocer.ID, -1); err == nil {
			t.Error("Expected error for negative points, got nil")
		}
		if got := mustGetUser(t, store, user.ID).AvailablePoints; got != 100 {
			t.Errorf("AvailablePoints = %d, want 100 (unchanged)", got)
		}
	})

	t.Run("conservation and grocer consistency across users", func(t *testing.T) {
		store := newTestStore(t)
		alice := createTestUser(t, store, "alice2", 100)
		bob := createTestUser(t, store, "bob2", 60)
		g1 := createTestGrocer(t, store, "Grocer One")
		g2 := createTestGrocer(t, store, "Grocer Two")

		moves := []struct {
			userID   string
			grocerID string
			points   int64
		}{
			{alice.ID, g1.ID, 30},
			{alice.ID, g2.ID, 25},
			{bob.ID, g1.ID, 60},
			{alice.ID, g1.ID, 10},
			{bob.ID, g1.ID, 15},
			{alice.ID, g2.ID, 0},
		}
		for _, m := range moves {
			if _, err := store.Reallocate(ctx, m.userID, m.grocerID, m.points); err != nil {
				t.Fatalf("Reallocate(%s, %s, %d) failed: %v", m.userID, m.grocerID, m.points, err)
			}
		}

		// Conservation: available + allocated == initial grant, per user.
		for _, tc := range []struct {
			user  *models.User
			grant int64
		}{{alice, 100}, {bob, 60}} {
			available := mustGetUser(t, store, tc.user.ID).AvailablePoints
			allocated := sumAllocations(t, store, tc.user.ID)
			if available+allocated != tc.grant {
				t.Errorf("User %s: available %d + allocated %d != grant %d",
					tc.user.Username, available, allocated, tc.grant)
			}
		}

		// Grocer consistency: received == sum of referencing allocations.
		wantReceived := map[string]int64{g1.ID: 10 + 15, g2.ID: 0}
		for id, want := range wantReceived {
			if got := mustGetGrocer(t, store, id).ReceivedPoints; got != want {
				t.Errorf("Grocer %s ReceivedPoints = %d, want %d", id, got, want)
			}
		}
	})

	t.Run("concurrent spends cannot jointly overdraw", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "harry", 100)
		g1 := createTestGrocer(t, store, "Race One")
		g2 := createTestGrocer(t, store, "Race Two")

		// 80 + 80 > 100: individually affordable, jointly not.
		results := make([]error, 2)
		var wg sync.WaitGroup
		for i, grocerID := range []string{g1.ID, g2.ID} {
			wg.Add(1)
			go func(i int, grocerID string) {
				defer wg.Done()
				_, err := store.Reallocate(ctx, user.ID, grocerID, 80)
				results[i] = err
			}(i, grocerID)
		}
		wg.Wait()

		var successes, rejections int
		for _, err := range results {
			var insufficient *storage.InsufficientPointsError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &insufficient), errors.Is(err, storage.ErrBusy):
				rejections++
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}
		if successes != 1 || rejections != 1 {
			t.Errorf("Got %d successes and %d rejections, want exactly 1 and 1", successes, rejections)
		}

		available := mustGetUser(t, store, user.ID).AvailablePoints
		allocated := sumAllocations(t, store, user.ID)
		if available+allocated != 100 {
			t.Errorf("Conservation violated: available %d + allocated %d != 100", available, allocated)
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	t.Run("user lookup by username and ID", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "lookup", 10)

		byName, err := store.GetUserByUsername(ctx, "lookup")
		if err != nil {
			t.Fatalf("GetUserByUsername failed: %v", err)
		}
		if byName == nil || byName.ID != user.ID {
			t.Errorf("GetUserByUsername returned %+v, want ID %s", byName, user.ID)
		}

		missing, err := store.GetUserByUsername(ctx, "nobody")
		if err != nil {
			t.Fatalf("GetUserByUsername failed: %v", err)
		}
		if missing != nil {
			t.Errorf("Expected nil for unknown username, got %+v", missing)
		}
	})

	t.Run("CountUsers", func(t *testing.T) {
		store := newTestStore(t)
		if count, _ := store.CountUsers(ctx); count != 0 {
			t.Errorf("CountUsers = %d, want 0", count)
		}
		createTestUser(t, store, "one", 0)
		createTestUser(t, store, "two", 0)
		if count, _ := store.CountUsers(ctx); count != 2 {
			t.Errorf("CountUsers = %d, want 2", count)
		}
	})

	t.Run("SetUserPoints", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "granted", 0)

		updated, err := store.SetUserPoints(ctx, user.ID, 250)
		if err != nil {
			t.Fatalf("SetUserPoints failed: %v", err)
		}
		if updated.AvailablePoints != 250 {
			t.Errorf("AvailablePoints = %d, want 250", updated.AvailablePoints)
		}

		if _, err := store.SetUserPoints(ctx, "no-such-user", 10); !errors.Is(err, storage.ErrUserNotFound) {
			t.Errorf("Expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("grocer update refreshes denormalized names", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "renamer", 100)
		grocer := createTestGrocer(t, store, "Old Name")

		if _, err := store.Reallocate(ctx, user.ID, grocer.ID, 10); err != nil {
			t.Fatalf("Reallocate failed: %v", err)
		}

		grocer.Name = "New Name"
		if err := store.UpdateGrocer(ctx, grocer); err != nil {
			t.Fatalf("UpdateGrocer failed: %v", err)
		}

		allocations, err := store.ListAllocations(ctx, user.ID)
		if err != nil {
			t.Fatalf("ListAllocations failed: %v", err)
		}
		if len(allocations) != 1 || allocations[0].GrocerName != "New Name" {
			t.Errorf("Expected allocation grocer name %q, got %+v", "New Name", allocations)
		}
	})

	t.Run("deleting a grocer refunds allocated points", func(t *testing.T) {
		store := newTestStore(t)
		user := createTestUser(t, store, "refunded", 100)
		grocer := createTestGrocer(t, store, "Closing Down")

		if _, err := store.Reallocate(ctx, user.ID, grocer.ID, 40); err != nil {
			t.Fatalf("Reallocate failed: %v", err)
		}
		if err := store.DeleteGrocer(ctx, grocer.ID); err != nil {
			t.Fatalf("DeleteGrocer failed: %v", err)
		}

		if got := mustGetUser(t, store, user.ID).AvailablePoints; got != 100 {
			t.Errorf("AvailablePoints = %d, want 100 after refund", got)
		}
		allocations, err := store.ListAllocations(ctx, user.ID)
		if err != nil {
			t.Fatalf("ListAllocations failed: %v", err)
		}
		if len(allocations) != 0 {
			t.Errorf("Expected allocations removed by cascade, got %d", len(allocations))
		}

		if err := store.DeleteGrocer(ctx, grocer.ID); !errors.Is(err, storage.ErrGrocerNotFound) {
			t.Errorf("Expected ErrGrocerNotFound on second delete, got %v", err)
		}
	})
}
