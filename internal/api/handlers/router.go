package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Products *ProductHandler
	Orders   *OrderHandler
	Health   *HealthHandler
	Auth     *Authenticator
	Logger   *slog.Logger
	Timeout  time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	if cfg.Health != nil {
		r.Method(http.MethodGet, "/health", cfg.Health)
	}

	user := cfg.Auth.Require(RoleUser)
	admin := cfg.Auth.Require(RoleAdmin)

	r.Route("/products", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(user)
			r.Get("/public/all", cfg.Products.GetAll)
			r.Get("/public/expensive-low-stock", cfg.Products.ExpensiveLowStock)
			r.Get("/public/{id}", cfg.Products.GetByID)
		})

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/admin/add", cfg.Products.Add)
			r.Put("/admin/{id}", cfg.Products.Update)
			r.Patch("/admin/{id}", cfg.Products.Patch)
			r.Delete("/admin/{id}", cfg.Products.Delete)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.With(admin).Delete("/admin/all", cfg.Orders.DeleteAll)

		r.Group(func(r chi.Router) {
			r.Use(user)
			r.Post("/", cfg.Orders.Create)
			r.Get("/", cfg.Orders.Mine)
			r.Get("/{id}", cfg.Orders.GetByID)
			r.Delete("/{id}", cfg.Orders.Delete)
		})
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.InfoContext(r.Context(), "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
