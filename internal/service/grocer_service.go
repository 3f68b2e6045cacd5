package service

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uninter-labs/grocerpoints/internal/auth"
	"github.com/uninter-labs/grocerpoints/internal/middleware"
	"github.com/uninter-labs/grocerpoints/internal/models"
	"github.com/uninter-labs/grocerpoints/internal/storage"
)

// GrocerService handles grocer registration and retrieval.
type GrocerService struct {
	store storage.Store
}

// NewGrocerService creates a new GrocerService with the given storage backend.
func NewGrocerService(store storage.Store) *GrocerService {
	return &GrocerService{store: store}
}

// Routes returns the router for the grocers API. Reads are public; all
// mutations require an authenticated admin.
func (s *GrocerService) Routes(jwtManager *auth.JWTManager) chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.List)
	r.Get("/{grocerID}", s.Get)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtManager), middleware.RequireAdmin)
		r.Post("/", s.Create)
		r.Put("/{grocerID}", s.Update)
		r.Delete("/{grocerID}", s.Delete)
	})
	return r
}

// List returns all registered grocers.
func (s *GrocerService) List(w http.ResponseWriter, r *http.Request) {
	grocers, err := s.store.ListGrocers(r.Context())
	if err != nil {
		slog.Error("ListGrocers failed", "error", err)
		writeStoreError(w, err)
		return
	}

	response := make([]grocerResponse, 0, len(grocers))
	for _, grocer := range grocers {
		response = append(response, toGrocerResponse(grocer))
	}

	writeJSON(w, http.StatusOK, response)
}

// Get returns a single grocer by ID.
func (s *GrocerService) Get(w http.ResponseWriter, r *http.Request) {
	grocerID := chi.URLParam(r, "grocerID")

	grocer, err := s.store.GetGrocer(r.Context(), grocerID)
	if err != nil {
		slog.Error("GetGrocer failed", "grocer_id", grocerID, "error", err)
		writeStoreError(w, err)
		return
	}
	if grocer == nil {
		writeError(w, http.StatusNotFound, storage.ErrGrocerNotFound.Error())
		return
	}

	writeJSON(w, http.StatusOK, toGrocerResponse(grocer))
}

type grocerRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Create registers a new grocer. Admin only.
func (s *GrocerService) Create(w http.ResponseWriter, r *http.Request) {
	var req grocerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Location == "" {
		writeError(w, http.StatusBadRequest, "name and location are required")
		return
	}

	grocer := &models.Grocer{
		Name:     req.Name,
		Location: req.Location,
	}
	if err := s.store.CreateGrocer(r.Context(), grocer); err != nil {
		slog.Error("CreateGrocer failed", "name", req.Name, "error", err)
		writeStoreError(w, err)
		return
	}

	slog.Info("Grocer created", "grocer_id", grocer.ID, "name", grocer.Name)
	writeJSON(w, http.StatusCreated, toGrocerResponse(grocer))
}

// Update changes a grocer's name and location. Admin only.
func (s *GrocerService) Update(w http.ResponseWriter, r *http.Request) {
	grocerID := chi.URLParam(r, "grocerID")

	var req grocerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Location == "" {
		writeError(w, http.StatusBadRequest, "name and location are required")
		return
	}

	grocer := &models.Grocer{
		ID:       grocerID,
		Name:     req.Name,
		Location: req.Location,
	}
	if err := s.store.UpdateGrocer(r.Context(), grocer); err != nil {
		slog.Warn("UpdateGrocer failed", "grocer_id", grocerID, "error", err)
		writeStoreError(w, err)
		return
	}

	// Re-read so the response carries the current received total.
	updated, err := s.store.GetGrocer(r.Context(), grocerID)
	if err != nil || updated == nil {
		slog.Error("Failed to fetch updated grocer", "grocer_id", grocerID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	slog.Info("Grocer updated", "grocer_id", grocerID)
	writeJSON(w, http.StatusOK, toGrocerResponse(updated))
}

// Delete removes a grocer. Admin only. Points allocated to the grocer are
// returned to the owning users.
func (s *GrocerService) Delete(w http.ResponseWriter, r *http.Request) {
	grocerID := chi.URLParam(r, "grocerID")

	if err := s.store.DeleteGrocer(r.Context(), grocerID); err != nil {
		slog.Warn("DeleteGrocer failed", "grocer_id", grocerID, "error", err)
		writeStoreError(w, err)
		return
	}

	slog.Info("Grocer deleted", "grocer_id", grocerID)
	w.WriteHeader(http.StatusNoContent)
}
