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

	"github.com/bazaarlabs/tradepost/internal/cache"
	"github.com/bazaarlabs/tradepost/internal/config"
	"github.com/bazaarlabs/tradepost/internal/engine"
	"github.com/bazaarlabs/tradepost/internal/handler"
	"github.com/bazaarlabs/tradepost/internal/ledger"
	"github.com/bazaarlabs/tradepost/internal/service"
	"github.com/bazaarlabs/tradepost/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Open the database and create tables.
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	// Instantiate stores.
	userStore := store.NewUserStore()
	inventoryStore := store.NewInventoryStore()
	tradeStore := store.NewTradeStore()
	listingStore := store.NewListingStore()
	orderStore := store.NewBuyOrderStore()

	// Ledgers.
	inventoryLedger := ledger.NewInventoryLedger(inventoryStore)
	creditLedger := ledger.NewCreditLedger(userStore)

	// Engine.
	books := engine.NewBookManager()
	matcher := engine.NewMatcher(listingStore, orderStore, inventoryLedger, creditLedger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rebuild the matching books from durable rows.
	if err := engine.RebuildBooks(ctx, db, books, listingStore, orderStore); err != nil {
		logger.Error("failed to rebuild books", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Cache backend per configuration.
	var marketCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		marketCache, err = cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err != nil {
			logger.Error("failed to connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
	default:
		marketCache = cache.NewMemoryCache()
	}
	defer marketCache.Close()

	// Services.
	userSvc := service.NewUserService(db, userStore)
	inventorySvc := service.NewInventoryService(db, inventoryStore, inventoryLedger)
	tradeSvc := service.NewTradeService(db, tradeStore, inventoryStore, inventoryLedger)
	listingSvc := service.NewListingService(db, listingStore, inventoryLedger, creditLedger, matcher, books, cfg.Market.FeePercent)
	orderSvc := service.NewBuyOrderService(db, orderStore, creditLedger, matcher, books)
	marketSvc := service.NewMarketService(db, listingStore, books, marketCache, cfg.Cache.TTL)

	// Router.
	router := handler.NewRouter(userSvc, inventorySvc, tradeSvc, listingSvc, orderSvc, marketSvc, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}
