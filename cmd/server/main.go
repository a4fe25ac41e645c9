/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the revenue engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and configuration (viper), then apply flag overrides
  2. Initialize the store (SQLite or Postgres)
  3. Connect the event publisher (RabbitMQ, or a logging fallback)
  4. Create the beneficiary manager and API handler
  5. Schedule the allocation audit
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides SERVER_PORT)
  -db      SQLite database path (overrides SQLITE_PATH)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  See config/config.go for the full list. The common ones:
  DB_DRIVER=sqlite|postgres, DATABASE_URL, RABBITMQ_URL, LOG_LEVEL

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Wait for a running audit
  4. Close the publisher and the database
  A listener failure takes the same path and exits 1.

EXAMPLES:
  ./server -db=":memory:"
  DB_DRIVER=postgres DATABASE_URL=postgres://... ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/revenue-engine/api"
	"github.com/warp/revenue-engine/beneficiary"
	"github.com/warp/revenue-engine/config"
	"github.com/warp/revenue-engine/events"
	"github.com/warp/revenue-engine/ledger"
	"github.com/warp/revenue-engine/store/postgres"
	"github.com/warp/revenue-engine/store/sqlite"
)

type closableStore interface {
	ledger.TxStore
	Close() error
}

func main() {
	os.Exit(run())
}

// run returns the process exit code. Returning instead of exiting lets the
// deferred closes run on every path.
func run() int {
	port := flag.String("port", "", "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on environment")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}
	if *port != "" {
		cfg.ServerPort = *port
	}
	if *dbPath != "" {
		cfg.SQLitePath = *dbPath
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	store, err := openStore(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to initialize database", "driver", cfg.DBDriver, "error", err)
		return 1
	}
	defer store.Close()

	publisher := events.Connect(cfg.RabbitMQURL, logger)
	defer publisher.Close()

	manager := beneficiary.NewManager(store,
		beneficiary.WithPublisher(publisher, cfg.EventsExchange),
		beneficiary.WithLogger(logger),
	)

	auditor := api.NewAuditScheduler(store, publisher, cfg.EventsExchange, logger)
	if err := auditor.Start(cfg.AuditSchedule); err != nil {
		logger.Error("invalid AUDIT_SCHEDULE", "schedule", cfg.AuditSchedule, "error", err)
		return 1
	}

	handler := api.NewHandler(store, manager, logger)
	handler.LegacyErrorStatus = cfg.LegacyErrorStatus
	handler.Auditor = auditor

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins(),
		ActorHeader:    cfg.ActorHeader,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("server starting", "port", cfg.ServerPort, "driver", cfg.DBDriver)
	return serve(server, auditor, quit, logger)
}

// serve runs server until quit fires or the listener fails, then shuts it
// down and waits for a running audit. It returns the process exit code.
func serve(server *http.Server, auditor *api.AuditScheduler, quit <-chan os.Signal, logger *slog.Logger) int {
	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	exitCode := 0
	select {
	case <-quit:
		logger.Info("shutting down server")
	case err := <-serveErr:
		logger.Error("server failed", "error", err)
		exitCode = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	select {
	case <-auditor.Stop().Done():
	case <-ctx.Done():
	}

	logger.Info("server stopped")
	return exitCode
}

func openStore(ctx context.Context, cfg config.Config) (closableStore, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL)
	default:
		return sqlite.New(cfg.SQLitePath)
	}
}
