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

	"github.com/rpattn/productadmin/internal/config"
	"github.com/rpattn/productadmin/internal/db"
	"github.com/rpattn/productadmin/internal/detail"
	"github.com/rpattn/productadmin/internal/export"
	"github.com/rpattn/productadmin/internal/filter"
	"github.com/rpattn/productadmin/internal/httpapi"
	"github.com/rpattn/productadmin/internal/ingestion"
	"github.com/rpattn/productadmin/internal/logging"
	"github.com/rpattn/productadmin/internal/metrics"
	"github.com/rpattn/productadmin/internal/middleware"
	"github.com/rpattn/productadmin/internal/numberrange"
	"github.com/rpattn/productadmin/internal/repository"
	"github.com/rpattn/productadmin/internal/seo"
)

var (
	configPath     string
	skipMigrations bool
	rollbackSteps  int
)

var rootCmd = &cobra.Command{
	Use:           "productadmin",
	Short:         "Product administration backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  serve,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return db.RunMigrations(cfg.Database, logger)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return db.RollbackMigrations(cfg.Database, rollbackSteps, logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "directory containing config.yaml")
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on startup")
	migrateDownCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if cfg.Source != "" {
		logger.Info("loaded configuration", zap.String("file", cfg.Source))
	}
	return cfg, logger, nil
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	if !skipMigrations {
		if err := db.RunMigrations(cfg.Database, logger); err != nil {
			return err
		}
	}

	registry, err := filter.NewRegistry()
	if err != nil {
		return fmt.Errorf("failed to load filter catalogue: %w", err)
	}

	products := repository.NewProductRepository(conn)
	currencies := repository.NewCurrencyRepository(conn.Pool)
	numbers := numberrange.NewService(conn.Pool, logger)
	collectors := metrics.New(metrics.Config{
		Namespace:        cfg.Metrics.Namespace,
		CollectGoMetrics: cfg.Metrics.CollectGoMetrics,
		CollectProcess:   cfg.Metrics.CollectProcess,
	})

	sessions := httpapi.NewSessionRegistry(detail.Dependencies{
		Products:        products,
		Currencies:      currencies,
		Taxes:           repository.NewTaxRepository(conn.Pool),
		CustomFieldSets: repository.NewCustomFieldSetRepository(conn.Pool),
		FeatureSets:     repository.NewFeatureSetRepository(conn.Pool),
		UserConfigs:     repository.NewUserConfigRepository(conn.Pool),
		Parents:         middleware.RequestParents{Repo: products},
		Numbers:         numbers,
		SeoURLs:         seo.NewService(conn.Pool, logger),
		Metrics:         collectors,
		Logger:          logger,
	}, cfg.Session.IdleTimeout, collectors, logger)

	sweepEvery := cfg.Session.IdleTimeout / 4
	if sweepEvery < time.Second {
		sweepEvery = time.Second
	}
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sessions.Run(ctx, sweepEvery)
	}()

	router := httpapi.NewRouter(httpapi.Dependencies{
		Products:   products,
		Currencies: currencies,
		Registry:   registry,
		Sessions:   sessions,
		Export: export.NewService(products, currencies,
			export.WithPageSize(cfg.Listing.ExportPageSize),
			export.WithMaxRows(cfg.Listing.ExportMaxRows),
			export.WithLogger(logger),
		),
		Import:  ingestion.NewHTTPHandler(ingestion.NewService(products, currencies, logger)),
		Numbers: numbers,
		Metrics: collectors,
		Health:  conn.Pool.Ping,
		Listing: httpapi.ListingOptions{
			Limit:   cfg.Listing.DefaultLimit,
			Filters: cfg.Listing.DefaultFilters,
		},
		SystemLanguageID: cfg.API.SystemLanguageID,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		Logger:           logger,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting product admin API", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			<-sweepDone
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	<-sweepDone
	logger.Info("server exited")
	return nil
}
