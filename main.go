package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"futuresProxy/config"
	"futuresProxy/internal/adapters/binanceclient"
	"futuresProxy/internal/adapters/binancerest"
	"futuresProxy/internal/adapters/httpapi"
	"futuresProxy/internal/adapters/logger"
	"futuresProxy/internal/app"
	"futuresProxy/internal/metrics"
	"futuresProxy/internal/ratelimit"
	"futuresProxy/internal/symbols"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Metrics; a nil registry disables collection
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.NewMetrics()
	}

	// 4. Instrument catalog and symbol set
	catalog, err := binanceclient.New(binanceclient.Config{
		BaseURL:    cfg.BaseURL,
		UseTestnet: cfg.IsTestnet,
		Timeout:    cfg.HTTPTimeout,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance catalog client: %v", err)
	}

	validator, err := symbols.NewValidator(symbols.Config{
		Catalog:  catalog,
		Logger:   appLogger,
		Metrics:  m,
		Attempts: cfg.SymbolLoadAttempts,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize symbol validator: %v", err)
	}
	if err := validator.Load(ctx); err != nil {
		// Fail closed: the server still starts, every symbol is rejected until a refresh succeeds.
		appLogger.Error(ctx, err, "Symbol catalog unavailable at startup, all symbols will be rejected")
	}

	// 5. Signed REST client
	restClient, err := binancerest.New(binancerest.Config{
		BaseURL:    cfg.BaseURL,
		UseTestnet: cfg.IsTestnet,
		Timeout:    cfg.HTTPTimeout,
		RecvWindow: cfg.RecvWindow,
		Logger:     appLogger,
		Metrics:    m,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize REST client: %v", err)
	}

	// 6. Application services
	pacer, err := ratelimit.New(cfg.PacingMode, cfg.OrderPacing)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize pacer: %v", err)
	}
	reconciler, err := app.NewPositionReconciler(app.ReconcilerConfig{
		IncomeLimit:    cfg.IncomeLimit,
		Lookback:       cfg.Lookback,
		MaxHistory:     cfg.MaxHistory,
		StrictMatching: cfg.StrictMatching,
	}, appLogger, restClient, validator, pacer, m)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize position reconciler: %v", err)
	}
	service, err := app.NewProxyService(appLogger, restClient, reconciler)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize proxy service: %v", err)
	}

	// 7. HTTP server
	gin.SetMode(gin.ReleaseMode)
	router, err := httpapi.NewRouter(httpapi.Config{
		Logger:         appLogger,
		Service:        service,
		Symbols:        validator,
		Pinger:         catalog,
		Metrics:        m,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AdminToken:     cfg.AdminToken,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize HTTP router: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": srv.Addr, "testnet": cfg.IsTestnet})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// 8. Wait for a shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		appLogger.Info(ctx, "Shutdown signal received", map[string]interface{}{"signal": sig.String()})
	case err := <-serverErr:
		if err != nil {
			appLogger.Error(ctx, err, "HTTP server failed")
			log.Fatalf("FATAL: HTTP server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(ctx, err, "Graceful shutdown did not complete")
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}
