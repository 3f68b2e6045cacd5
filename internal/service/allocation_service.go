package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/uninter-labs/grocerpoints/internal/middleware"
	"github.com/uninter-labs/grocerpoints/internal/storage"
)

var reallocationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "grocerpoints_reallocations_total",
		Help: "Reallocation attempts by outcome.",
	},
	[]string{"outcome"},
)

// AllocationService handles the points allocation API: listing the caller's
// allocations and setting the allocation for one grocer.
type AllocationService struct {
	store storage.Store
}

// NewAllocationService creates a new AllocationService with the given storage backend.
func NewAllocationService(store storage.Store) *AllocationService {
	return &AllocationService{store: store}
}

// Routes returns the router for the allocations API. All routes require an
// authenticated caller; the acting user is always taken from the token, never
// from the request body.
func (s *AllocationService) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.List)
	r.Put("/{grocerID}", s.Reallocate)
	return r
}

// List returns the authenticated user's current allocations.
func (s *AllocationService) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	allocations, err := s.store.ListAllocations(r.Context(), userID)
	if err != nil {
		slog.Error("ListAllocations failed", "user_id", userID, "error", err)
		writeStoreError(w, err)
		return
	}

	response := make([]allocationResponse, 0, len(allocations))
	for _, allocation := range allocations {
		response = append(response, toAllocationResponse(allocation))
	}

	writeJSON(w, http.StatusOK, response)
}

// reallocateRequest is the body of PUT /api/allocations/{grocerID}.
// Points is a pointer so a missing field is distinguishable from zero.
type reallocateRequest struct {
	Points *int64 `json:"points"`
}

// reallocateResponse reports the committed state after a reallocation.
// Allocation is null when the reallocation removed the record.
type reallocateResponse struct {
	Message      string              `json:"message"`
	NewAvailable int64               `json:"newAvailable"`
	Allocation   *allocationResponse `json:"allocation"`
}

// Reallocate sets the caller's allocation to the grocer to the requested total.
func (s *AllocationService) Reallocate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	grocerID := chi.URLParam(r, "grocerID")

	var req reallocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Points == nil {
		reallocationsTotal.WithLabelValues("invalid_argument").Inc()
		writeError(w, http.StatusBadRequest, "points must be a non-negative number")
		return
	}
	if *req.Points < 0 {
		reallocationsTotal.WithLabelValues("invalid_argument").Inc()
		writeError(w, http.StatusBadRequest, "points must be a non-negative number")
		return
	}

	result, err := s.store.Reallocate(r.Context(), userID, grocerID, *req.Points)
	if err != nil {
		slog.Warn("Reallocate failed",
			"user_id", userID,
			"grocer_id", grocerID,
			"points", *req.Points,
			"error", err,
		)
		reallocationsTotal.WithLabelValues(reallocateOutcome(err)).Inc()
		writeStoreError(w, err)
		return
	}

	slog.Info("Points reallocated",
		"user_id", userID,
		"grocer_id", grocerID,
		"points", *req.Points,
		"new_available", result.NewAvailable,
	)
	reallocationsTotal.WithLabelValues("ok").Inc()

	response := reallocateResponse{
		Message:      "Points allocated successfully.",
		NewAvailable: result.NewAvailable,
	}
	if result.Allocation != nil {
		allocation := toAllocationResponse(result.Allocation)
		response.Allocation = &allocation
	}

	writeJSON(w, http.StatusOK, response)
}

func reallocateOutcome(err error) string {
	var insufficient *storage.InsufficientPointsError
	switch {
	case errors.Is(err, storage.ErrUserNotFound), errors.Is(err, storage.ErrGrocerNotFound):
		return "not_found"
	case errors.As(err, &insufficient):
		return "insufficient_points"
	case errors.Is(err, storage.ErrBusy):
		return "conflict"
	default:
		return "error"
	}
}
