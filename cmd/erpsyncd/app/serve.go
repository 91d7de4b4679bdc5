package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/lojistack/erp-sync-server/internal/api"
	"github.com/lojistack/erp-sync-server/internal/cache/postgres"
	"github.com/lojistack/erp-sync-server/internal/config"
	"github.com/lojistack/erp-sync-server/internal/coordinator"
	"github.com/lojistack/erp-sync-server/internal/crawl"
	"github.com/lojistack/erp-sync-server/internal/db"
	"github.com/lojistack/erp-sync-server/internal/erp"
	"github.com/lojistack/erp-sync-server/internal/lookup"
	"github.com/lojistack/erp-sync-server/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync server",
	Long: `Start the sync server: background crawls for every configured tenant,
the serial lookup queue, and the REST admin surface.

The server requires a configuration file (--config) that specifies:
- The ERP tenants to sync (endpoint and credentials per tenant)
- Crawl cadence, paging and outbound client settings
- Database connection settings

See examples/ directory for sample configurations.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 65 * time.Second // lookups block on the queue, must exceed the request timeout
	serverRequestTimeout   = 60 * time.Second
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address"))
	if err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	err = viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

// startEngine launches the crawl scheduler and the lookup queue and returns
// immediately. Scheduler.Start blocks until its context is cancelled, so it
// gets its own goroutine; both are stopped later through their Stop methods.
func startEngine(ctx context.Context, scheduler crawl.Scheduler, queue lookup.Queue) {
	go func() {
		if err := scheduler.Start(ctx); err != nil {
			slog.Error("Crawl scheduler failed", "error", err)
		}
	}()
	queue.Start(ctx)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	address := viper.GetString("address")

	slog.Info("Starting ERP sync server", "address", address)

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"server", cfg.GetServerName(),
		"tenants", cfg.TenantNames())

	if cfg.Database == nil {
		return fmt.Errorf("database configuration is required")
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	repo, err := postgres.New(conn.Pool)
	if err != nil {
		return fmt.Errorf("failed to create cache repository: %w", err)
	}

	erpClient, err := erp.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create ERP client: %w", err)
	}

	coord := coordinator.New(cfg.TenantNames())

	syncMetrics, err := telemetry.NewSyncMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}
	lookupMetrics, err := telemetry.NewLookupMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create lookup metrics: %w", err)
	}

	crawler := crawl.New(erpClient, repo, coord,
		crawl.WithPageSize(cfg.GetPageSize()),
		crawl.WithMaxPages(cfg.GetMaxPages()),
		crawl.WithSyncMetrics(syncMetrics),
	)

	scheduler := crawl.NewScheduler(crawler, cfg)

	lookupOpts := []lookup.Option{lookup.WithLookupMetrics(lookupMetrics)}
	if size := cfg.GetLookupQueueSize(); size > 0 {
		lookupOpts = append(lookupOpts, lookup.WithCapacity(size))
	}
	queue := lookup.New(erpClient, repo, coord, cfg.TenantNames(), lookupOpts...)

	startEngine(ctx, scheduler, queue)

	router := api.NewServer(coord, queue, repo,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
		),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	if err := scheduler.Stop(); err != nil {
		slog.Error("Failed to stop crawl scheduler", "error", err)
	}
	if err := queue.Stop(); err != nil {
		slog.Error("Failed to stop lookup queue", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}
