// Package scanhub предоставляет маршруты для основного приложения.
package scanhub

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/scanhub/internal/http/handlers/admin/analytics"
	"github.com/magabrotheeeer/scanhub/internal/http/handlers/admin/reject"
	"github.com/magabrotheeeer/scanhub/internal/http/handlers/admin/verify"
	"github.com/magabrotheeeer/scanhub/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/scanhub/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/scanhub/internal/http/handlers/health"
	"github.com/magabrotheeeer/scanhub/internal/http/handlers/scan/consume"
	"github.com/magabrotheeeer/scanhub/internal/http/handlers/scan/status"
	"github.com/magabrotheeeer/scanhub/internal/http/handlers/subscription/markpaid"
	"github.com/magabrotheeeer/scanhub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/scanhub/internal/lib/jwt"
	adminservice "github.com/magabrotheeeer/scanhub/internal/services/admin"
	authservice "github.com/magabrotheeeer/scanhub/internal/services/auth"
	quotaservice "github.com/magabrotheeeer/scanhub/internal/services/quota"
	"github.com/magabrotheeeer/scanhub/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, jwtMaker jwt.Maker,
	authService *authservice.AuthService, quotaService *quotaservice.QuotaService,
	adminService *adminservice.AdminService, db *repository.Storage) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/scan", consume.New(logger, quotaService).ServeHTTP)
			r.Get("/status", status.New(logger, quotaService).ServeHTTP)
			r.Post("/subscription/pay", markpaid.New(logger, quotaService).ServeHTTP)

			// Операции модератора
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminOnlyMiddleware(logger))
				r.Post("/admin/verify", verify.New(logger, adminService).ServeHTTP)
				r.Post("/admin/reject", reject.New(logger, adminService).ServeHTTP)
				r.Get("/admin/analytics", analytics.New(logger, adminService).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger, readyChecker{db}).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}

// readyChecker адаптирует функцию проверки хранилища к интерфейсу health.Checker.
type readyChecker struct {
	db *repository.Storage
}

func (c readyChecker) CheckDatabaseReady(_ context.Context) error {
	return repository.CheckDatabaseReady(c.db)
}
