/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave portal server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Open the configured datastore (memory, sqlite or redis)
  3. Seed the roster when the users collection is empty
  4. Create service, API handler and connectivity monitor
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML configuration file (optional)
  -port    HTTP server port, overrides addr
  -db      SQLite database path, overrides sqlite_path and selects sqlite
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the connectivity monitor and close the datastore
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Run against redis
  LEAVE_STORE=redis LEAVE_REDIS_URL=redis://localhost:6379/0 ./server

  # Run on different port
  ./server -port=3000

ENVIRONMENT:
  LEAVE_* variables override the config file, see config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings
  - store/open.go: Datastore selection
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/warp/leave-portal/api"
	"github.com/warp/leave-portal/config"
	"github.com/warp/leave-portal/leave"
	"github.com/warp/leave-portal/metrics"
	"github.com/warp/leave-portal/store"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides addr)")
	dbPath := flag.String("db", "", "SQLite database path (overrides sqlite_path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Addr = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.Store = config.StoreSQLite
		cfg.SQLitePath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	loc, err := config.ResolveTimezone(cfg)
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	// Initialize store
	backend, err := store.Open(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize datastore: %v", err)
	}
	defer backend.Close()

	svc := leave.NewService(backend, cfg.Policy, logger)
	svc.Location = loc
	svc.Recorder = metrics.Recorder{}

	if cfg.SeedRoster {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := svc.Seed(ctx, leave.DefaultRoster(cfg.Policy.Entitlement()))
		cancel()
		if err != nil {
			log.Fatalf("Failed to seed roster: %v", err)
		}
		if n > 0 {
			log.Printf("Seeded %d users", n)
		}
	}

	monitor := api.NewConnectivityMonitor(backend, logger)
	monitor.Start()
	defer monitor.Stop()

	// Initialize handler
	handler := api.NewHandler(svc, api.NewTokenManager(cfg.JWTSecret, "", cfg.TokenTTL), logger)
	handler.Monitor = monitor

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		EnableScenarios: cfg.EnableScenarios,
		EnableMetrics:   true,
	})

	// Create server. No WriteTimeout: /api/live holds connections open.
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on %s (store: %s)", cfg.Addr, cfg.Store)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
