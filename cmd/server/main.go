/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the workforce engine server: shifts, leave and
  notifications over one SQLite database. Handles configuration,
  dependency wiring and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, then .env)
  2. Build the zap logger
  3. Open the SQLite store (migrations run on open)
  4. Optionally seed organizations and members from a JSON file
  5. Create the API handler and router
  6. Start the reminder scheduler
  7. Serve until SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -seed    JSON file with organizations and members to upsert at startup

ENVIRONMENT:
  See config/config.go. DATABASE_PATH=":memory:" runs without a file.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Stop the scheduler, letting a running sweep finish
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/store.go: Database implementation
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/warp/workforce-engine/api"
	"github.com/warp/workforce-engine/config"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/store/sqlite"
	"go.uber.org/zap"
)

func main() {
	seedPath := flag.String("seed", "", "JSON file with organizations and members to load at startup")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *seedPath, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, seedPath string, log *zap.Logger) error {
	if cfg.DatabasePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if seedPath != "" {
		if err := seed(ctx, store, seedPath); err != nil {
			return err
		}
		log.Info("directory seeded", zap.String("file", seedPath))
	}

	clock := generic.RealClock()
	handler, err := api.NewHandler(store, api.Options{
		DefaultTimezone:    cfg.DefaultTimezone,
		DefaultAnnualLeave: cfg.DefaultAnnualLeave,
		Clock:              clock,
	}, log)
	if err != nil {
		return err
	}

	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		EnableReset:    !cfg.IsProduction,
	}, log)

	var scheduler *api.ReminderScheduler
	if cfg.ReminderEnabled {
		scheduler, err = api.NewReminderScheduler(handler.Reminders, clock, cfg.ReminderSchedule, log)
		if err != nil {
			return err
		}
		scheduler.Start()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", server.Addr), zap.Bool("production", cfg.IsProduction))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	log.Info("server stopped")
	return nil
}

// seedFile is the -seed format. Organizations are saved before members.
type seedFile struct {
	Organizations []generic.Organization `json:"organizations"`
	Members       []generic.Member       `json:"members"`
}

func seed(ctx context.Context, store *sqlite.Store, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var data seedFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	for _, org := range data.Organizations {
		if err := store.SaveOrganization(ctx, org); err != nil {
			return fmt.Errorf("seed organization %s: %w", org.ID, err)
		}
	}
	// Managers first so staff rows can reference them.
	for _, pass := range []generic.Role{generic.RoleManager, generic.RoleStaff} {
		for _, m := range data.Members {
			if m.Role != pass {
				continue
			}
			if err := store.SaveMember(ctx, m); err != nil {
				return fmt.Errorf("seed member %s: %w", m.ID, err)
			}
		}
	}
	return nil
}
