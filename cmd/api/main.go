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

	"grocer/internal/config"
	"grocer/internal/database"
	"grocer/internal/handler"
	"grocer/internal/idempotency"
	"grocer/internal/metrics"
	"grocer/internal/notify"
	"grocer/internal/payment"
	"grocer/internal/repository"
	"grocer/internal/router"
	"grocer/internal/service"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting grocer API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool, "up", logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	redisClient, err := idempotency.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer redisClient.Close()

	guard, err := idempotency.NewGuard(idempotency.NewRedisStore(redisClient), cfg.Redis.IdempotencyTTL, "stripe-webhook")
	if err != nil {
		return fmt.Errorf("failed to initialize idempotency guard: %w", err)
	}

	gateway, err := payment.NewStripeGateway(cfg.Stripe, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize payment gateway: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	mailer, err := newMailer(cfg.SMTP, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}
	dispatcher := notify.NewDispatcher(mailer, cfg.SMTP.MaxRetries, cfg.SMTP.Timeout, m, logger)

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	userRepo := repository.NewUserRepository(pool, logger)
	supplierOrderRepo := repository.NewSupplierOrderRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)

	// Initialize services
	ledger := service.NewInventoryLedger(productRepo, cfg.Inventory.StockPolicy, m, logger)
	couriers := service.NewCourierBalancer(userRepo, orderRepo, logger)
	orderService := service.NewOrderService(orderRepo, productRepo, userRepo, ledger, couriers, dispatcher, m, logger)
	paymentService := service.NewPaymentService(orderRepo, productRepo, ledger, couriers, gateway, guard, dispatcher, m, logger)
	restockService := service.NewRestockService(supplierOrderRepo, userRepo, productRepo, ledger, dispatcher, cfg.Inventory.LowStockThreshold, logger)
	cartService := service.NewCartService(cartRepo, productRepo, logger)

	// Initialize router
	mux := router.New(router.Handlers{
		Health:   handler.NewHealthHandler(pool, logger),
		Orders:   handler.NewOrderHandler(orderService, logger),
		Payments: handler.NewPaymentHandler(paymentService, gateway, logger),
		Cart:     handler.NewCartHandler(cartService, logger),
		Restock:  handler.NewRestockHandler(restockService, logger),
	}, router.Options{
		Auth:     cfg.Auth,
		CORS:     cfg.CORS,
		Metrics:  m,
		Gatherer: reg,
	}, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		// Let queued emails go out before the pool and process exit.
		if err := dispatcher.Close(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("pending notifications dropped at shutdown")
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

func newMailer(cfg config.SMTPConfig, logger zerolog.Logger) (notify.Mailer, error) {
	if !cfg.Enabled {
		logger.Info().Msg("SMTP disabled, notifications will only be logged")
		return notify.NewLogMailer(logger), nil
	}
	mailer, err := notify.NewSMTPMailer(cfg)
	if err != nil {
		return nil, err
	}
	return mailer, nil
}
