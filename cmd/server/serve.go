package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/overwork-engine/api"
	"github.com/warp/overwork-engine/config"
	"github.com/warp/overwork-engine/factory"
	"github.com/warp/overwork-engine/logging"
	"github.com/warp/overwork-engine/store/sqlite"
	"github.com/warp/overwork-engine/worktime"
)

var serveFlags struct {
	configPath string
	port       int
	dbPath     string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(serveFlags.configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serveFlags.port
		}
		if cmd.Flags().Changed("db") {
			cfg.Database.Path = serveFlags.dbPath
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.configPath, "config", "c", "", "YAML config file")
	serveCmd.Flags().IntVarP(&serveFlags.port, "port", "p", 8080, "HTTP server port")
	serveCmd.Flags().StringVar(&serveFlags.dbPath, "db", "", `SQLite database path (":memory:" for in-memory)`)
}

func serve(cfg *config.Config) error {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	defaults, err := cfg.Defaults.Settings()
	if err != nil {
		return err
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	svc := worktime.NewService(store, worktime.Config{Location: loc, Defaults: defaults}, logger)

	metrics := api.NewMetrics()
	handler := api.NewHandler(svc, factory.NewSettingsFactory(defaults), metrics, logger)
	handler.Health = store

	schedule := cfg.Audit.Schedule
	if !cfg.Audit.Enabled {
		schedule = api.DefaultAuditSchedule // unvalidated when disabled
	}
	auditor, err := api.NewBankAuditor(svc, store, metrics, logger, schedule)
	if err != nil {
		return err
	}
	auditor.Enabled = cfg.Audit.Enabled
	handler.Auditor = auditor

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, api.RouterOptions{}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("database", cfg.Database.Path),
			zap.String("timezone", loc.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	auditor.Start()
	defer auditor.Stop()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
