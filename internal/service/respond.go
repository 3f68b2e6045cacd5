// Package service implements the HTTP API on top of the storage layer.
package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/uninter-labs/grocerpoints/internal/models"
	"github.com/uninter-labs/grocerpoints/internal/storage"
)

// errorResponse is the JSON body for every failed request.
type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			slog.Error("Failed to encode response", "error", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// writeStoreError maps storage errors to HTTP statuses:
// not found -> 404, insufficient points -> 400, lock contention -> 409,
// anything else -> 500 with a generic message.
func writeStoreError(w http.ResponseWriter, err error) {
	var insufficient *storage.InsufficientPointsError
	switch {
	case errors.Is(err, storage.ErrUserNotFound), errors.Is(err, storage.ErrGrocerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &insufficient):
		writeError(w, http.StatusBadRequest, insufficient.Error())
	case errors.Is(err, storage.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// userResponse is the public shape of a user; the password hash never leaves
// the server.
type userResponse struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	Role            string `json:"role"`
	AvailablePoints int64  `json:"availablePoints"`
	CreatedAt       int64  `json:"createdAt"`
}

func toUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:              user.ID,
		Username:        user.Username,
		Name:            user.Name,
		Role:            user.Role,
		AvailablePoints: user.AvailablePoints,
		CreatedAt:       user.CreatedAt,
	}
}

// grocerResponse is the public shape of a grocer.
type grocerResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Location       string `json:"location"`
	ReceivedPoints int64  `json:"receivedPoints"`
	CreatedAt      int64  `json:"createdAt"`
}

func toGrocerResponse(grocer *models.Grocer) grocerResponse {
	return grocerResponse{
		ID:             grocer.ID,
		Name:           grocer.Name,
		Location:       grocer.Location,
		ReceivedPoints: grocer.ReceivedPoints,
		CreatedAt:      grocer.CreatedAt,
	}
}

// allocationResponse is the public shape of an allocation.
type allocationResponse struct {
	GrocerID   string `json:"grocerId"`
	GrocerName string `json:"grocerName"`
	Points     int64  `json:"points"`
}

func toAllocationResponse(allocation *models.Allocation) allocationResponse {
	return allocationResponse{
		GrocerID:   allocation.GrocerID,
		GrocerName: allocation.GrocerName,
		Points:     allocation.Points,
	}
}
