package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uninter-labs/grocerpoints/internal/auth"
	"github.com/uninter-labs/grocerpoints/internal/middleware"
	"github.com/uninter-labs/grocerpoints/internal/storage"
)

// UserService handles user account administration.
type UserService struct {
	store         storage.Store
	authenticator auth.Authenticator
}

// NewUserService creates a new UserService with the given storage backend and
// authenticator (used for account creation).
func NewUserService(store storage.Store, authenticator auth.Authenticator) *UserService {
	return &UserService{store: store, authenticator: authenticator}
}

// Routes returns the router for the users API. Listing is public; account
// creation and point grants require an authenticated admin.
func (s *UserService) Routes(jwtManager *auth.JWTManager) chi.Router {
	r := chi.NewRouter()
	r.Get("/", s.List)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtManager), middleware.RequireAdmin)
		r.Post("/", s.Create)
		r.Put("/{userID}/points", s.SetPoints)
	})
	return r
}

// List returns all registered users.
func (s *UserService) List(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		slog.Error("ListUsers failed", "error", err)
		writeStoreError(w, err)
		return
	}

	response := make([]userResponse, 0, len(users))
	for _, user := range users {
		response = append(response, toUserResponse(user))
	}

	writeJSON(w, http.StatusOK, response)
}

type createUserRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// Create provisions a new user account. Admin only.
func (s *UserService) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "username and name are required")
		return
	}

	user, err := s.authenticator.Register(r.Context(), req.Username, req.Name, req.Role, req.Password)
	if err != nil {
		slog.Warn("Create user failed", "username", req.Username, "error", err)
		switch {
		case errors.Is(err, auth.ErrUsernameExists),
			errors.Is(err, auth.ErrWeakPassword),
			errors.Is(err, auth.ErrInvalidRole):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	slog.Info("User created", "user_id", user.ID, "username", user.Username, "role", user.Role)
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

type setPointsRequest struct {
	Points *int64 `json:"points"`
}

// SetPoints directly sets a user's available balance. Admin only; this is the
// grant/reset path and does not go through the reallocation transaction.
func (s *UserService) SetPoints(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req setPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Points == nil || *req.Points < 0 {
		writeError(w, http.StatusBadRequest, "points must be a non-negative number")
		return
	}

	user, err := s.store.SetUserPoints(r.Context(), userID, *req.Points)
	if err != nil {
		slog.Warn("SetUserPoints failed", "user_id", userID, "error", err)
		writeStoreError(w, err)
		return
	}

	slog.Info("User points set",
		"user_id", user.ID,
		"points", *req.Points,
		"admin_id", middleware.GetUserID(r.Context()),
	)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
