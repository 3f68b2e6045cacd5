package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/uninter-labs/grocerpoints/internal/auth"
	"github.com/uninter-labs/grocerpoints/internal/middleware"
	"github.com/uninter-labs/grocerpoints/internal/models"
	"github.com/uninter-labs/grocerpoints/internal/service"
	"github.com/uninter-labs/grocerpoints/internal/storage"
	"github.com/uninter-labs/grocerpoints/internal/storage/sqlite"
	"github.com/uninter-labs/grocerpoints/pkg/logging"
)

const tokenDuration = 24 * time.Hour

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// bootstrapAdmin seeds an admin account when the user table is empty so a
// fresh deployment has a way in. Credentials come from env with dev defaults.
func bootstrapAdmin(ctx context.Context, store storage.Store, authenticator auth.Authenticator) error {
	count, err := store.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	username := getEnv("ADMIN_USERNAME", "admin")
	password := getEnv("ADMIN_PASSWORD", "changeme-admin")
	admin, err := authenticator.Register(ctx, username, "Administrator", models.RoleAdmin, password)
	if err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	slog.Info("Bootstrapped admin account", "username", admin.Username, "user_id", admin.ID)
	return nil
}

func main() {
	// Setup structured logging
	logging.Setup()

	// Get settings from env or use defaults
	dbPath := getEnv("DB_PATH", "./data/points.db")
	port := getEnv("PORT", "8080")
	secret := getEnv("SECRET", "dev-secret-change-in-production")

	// Initialize SQLite storage
	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	jwtManager := auth.NewJWTManager(secret, tokenDuration)
	authenticator := auth.NewPasswordAuthenticator(store)

	if err := bootstrapAdmin(context.Background(), store, authenticator); err != nil {
		slog.Error("Failed to bootstrap admin account", "error", err)
		os.Exit(1)
	}

	// Build services
	authService := service.NewAuthService(authenticator, jwtManager, slog.Default())
	userService := service.NewUserService(store, authenticator)
	grocerService := service.NewGrocerService(store)
	allocationService := service.NewAllocationService(store)

	r := chi.NewRouter()
	r.Use(middleware.Metrics, middleware.Logging)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/login", authService.Routes())
		r.Mount("/users", userService.Routes(jwtManager))
		r.Mount("/grocers", grocerService.Routes(jwtManager))
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(jwtManager))
			r.Mount("/allocations", allocationService.Routes())
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	// Wrap with h2c so clients can use HTTP/2 without TLS
	h2cHandler := h2c.NewHandler(r, &http2.Server{})

	addr := ":" + port
	slog.Info("Server starting", "address", addr, "url", fmt.Sprintf("http://localhost%s", addr))
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
