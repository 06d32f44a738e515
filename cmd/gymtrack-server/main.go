package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/msomdec/gymtrack/internal/handler"
	"github.com/msomdec/gymtrack/internal/repository/sqlite"
	"github.com/msomdec/gymtrack/internal/service"
)

// serverConfig is read from the environment.
type serverConfig struct {
	Port         string
	DatabasePath string
	JWTSecret    string
	PasswordHash string
	BcryptCost   int
	LoginRate    int
}

func main() {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, opts),
		slog.NewJSONHandler(os.Stderr, opts),
	))
	slog.SetDefault(logger)

	// gymtrack-server hash-password <password> prints a value for
	// ADMIN_PASSWORD_HASH.
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		cost, err := intEnv(os.Getenv, "BCRYPT_COST", 12, 4, 14)
		if err == nil {
			var hash string
			if hash, err = service.HashPassword(os.Args[2], cost); err == nil {
				fmt.Println(hash)
				return
			}
		}
		slog.Error("hash password", "error", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(getenv func(string) string) (serverConfig, error) {
	cfg := serverConfig{
		Port:         envOr(getenv, "PORT", "3001"),
		DatabasePath: envOr(getenv, "DATABASE_PATH", "gymtrack.db"),
		JWTSecret:    getenv("JWT_SECRET"),
		PasswordHash: getenv("ADMIN_PASSWORD_HASH"),
	}
	switch {
	case cfg.JWTSecret == "":
		return cfg, errors.New("JWT_SECRET is required")
	case len(cfg.JWTSecret) < 32:
		return cfg, errors.New("JWT_SECRET must be at least 32 characters")
	case cfg.PasswordHash == "":
		return cfg, errors.New("ADMIN_PASSWORD_HASH is required (see hash-password)")
	}

	var err error
	if cfg.BcryptCost, err = intEnv(getenv, "BCRYPT_COST", 12, 4, 14); err != nil {
		return cfg, err
	}
	if cfg.LoginRate, err = intEnv(getenv, "LOGIN_RATE_PER_MINUTE", 5, 1, 1000); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(getenv func(string) string, key string, fallback, lo, hi int) (int, error) {
	v := getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d, got %q", key, lo, hi, v)
	}
	return n, nil
}

func run(ctx context.Context, cfg serverConfig, logger *slog.Logger) error {
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	catalog := service.NewCatalogService(db.Catalog(), db.Config())
	if err := catalog.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed reference data: %w", err)
	}
	workouts := service.NewWorkoutService(db.Sessions(), db.Sets(), db.SessionDays(),
		db.SessionExercises(), db.Catalog(), db.Config())
	syncer := service.NewSyncService(db.Sync(), logger)
	auth := service.NewAuthService(cfg.PasswordHash, cfg.JWTSecret)

	limiter := service.PerMinute(cfg.LoginRate)
	defer limiter.Stop()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, auth, limiter, catalog, workouts, syncer)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.RequestLogger(logger, handler.SecurityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "database", cfg.DatabasePath)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
