package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/launchkit/polarbridge/config"
	"github.com/launchkit/polarbridge/internal/api"
	"github.com/launchkit/polarbridge/internal/auth"
	"github.com/launchkit/polarbridge/internal/billing"
	"github.com/launchkit/polarbridge/internal/database"
	"github.com/launchkit/polarbridge/internal/logger"
	"github.com/launchkit/polarbridge/internal/metrics"
	middlewares "github.com/launchkit/polarbridge/internal/middleware"
	"github.com/launchkit/polarbridge/internal/polar"
	"github.com/launchkit/polarbridge/internal/ratelimit"
	"github.com/launchkit/polarbridge/internal/store"
	"github.com/launchkit/polarbridge/internal/webhook"
	"github.com/launchkit/polarbridge/pkg/utils"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting polarbridge",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
		"polar_server", cfg.Polar.Server,
		"polar_token", utils.MaskToken(cfg.Polar.AccessToken),
	)

	// Initialize metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close(ctx)

	// Initialize store
	billingStore := store.New(db)

	// Billing provider client and services
	polarClient := polar.NewClient(cfg.Polar)
	billingService := billing.NewService(billingStore, polarClient, cfg.Polar.OrganizationID, cfg.Frontend.BaseURL)
	applier := billing.NewApplier(billingStore)

	webhookVerifier, err := webhook.NewVerifier(cfg.Polar.WebhookSecret)
	if err != nil {
		logger.Fatal("Failed to initialize webhook verifier", "error", err)
	}

	// Identity verification is optional: without a publishable key the
	// authenticated routes refuse service while webhook ingress still runs.
	var verifier auth.Verifier
	if cfg.Clerk.PublishableKey != "" {
		clerkVerifier, err := auth.NewClerkVerifier(cfg.Clerk.PublishableKey)
		if err != nil {
			logger.Fatal("Failed to initialize identity verifier", "error", err)
		}
		verifier = clerkVerifier
	} else {
		logger.Warn("CLERK_PUBLISHABLE_KEY not set; authenticated billing routes are disabled")
	}

	limiter, err := ratelimit.NewManager(cfg.Redis.URL, cfg.Redis.RatePerMinute)
	if err != nil {
		logger.Fatal("Failed to initialize rate limiter", "error", err)
	}
	defer limiter.Close()

	// Setup HTTP server
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.Logging)
	r.Use(middlewares.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.ReadTimeout))
	r.Use(middlewares.Security)
	r.Use(middlewares.CORS([]string{cfg.Frontend.BaseURL}))

	// Initialize API handlers
	apiHandler := api.NewHandler(billingStore, billingService, applier, verifier, webhookVerifier, limiter, Version, BuildTime, GitCommit)
	apiHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if metricsSrv != nil {
		g.Go(func() error {
			logger.Info("Starting metrics server", "address", metricsSrv.Addr, "path", cfg.Metrics.Path)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			logger.Info("Shutting down server...")
		case <-gctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", "error", err)
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Server error", "error", err)
	}

	logger.Info("Server exited")
}
