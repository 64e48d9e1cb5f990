package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"store-service/internal/api/handlers"
	"store-service/internal/cache"
	"store-service/internal/database"
	"store-service/internal/repository"
	"store-service/internal/repository/memory"
	"store-service/internal/service"
)

func main() {
	cfg, err := database.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *database.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		products repository.ProductRepository
		orders   repository.OrderRepository
		tx       repository.Transactor
		checks   = map[string]handlers.Pinger{}
	)

	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		store := memory.New()
		products, orders, tx = store.Products(), store.Orders(), store

	default:
		pool, err := database.ConnectDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := database.Migrate(ctx, pool, logger); err != nil {
			return err
		}

		products = repository.NewProductRepository(pool)
		orders = repository.NewOrderRepository(pool)
		tx = database.NewTxManager(pool)
		checks["postgres"] = pool
	}

	if cfg.CacheEnabled {
		rdb, err := cache.ConnectRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer rdb.Close()

		products = cache.NewCachedProductRepository(products, rdb, cfg.CacheTTL, logger)
		checks["redis"] = redisPinger{rdb}
	}

	productService := service.NewProductService(products, tx, logger)
	orderService := service.NewOrderService(orders, productService, tx, logger)

	creds := make([]handlers.Credentials, 0, len(cfg.AuthUsers))
	for _, u := range cfg.AuthUsers {
		creds = append(creds, handlers.Credentials{Username: u.Name, Password: u.Password, Role: u.Role})
	}
	auth, err := handlers.NewAuthenticator(creds, bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: handlers.NewRouter(handlers.RouterConfig{
			Products: handlers.NewProductHandler(productService, logger),
			Orders:   handlers.NewOrderHandler(orderService, logger),
			Health:   handlers.NewHealthHandler(checks),
			Auth:     auth,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "cache", cfg.CacheEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return <-errCh
}

func newLogger(cfg *database.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
