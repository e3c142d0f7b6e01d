// Package scanhub собирает HTTP-приложение: хранилище, кеш, объектное
// хранилище, бизнес-сервисы и маршруты.
package scanhub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/scanhub/internal/cache"
	"github.com/magabrotheeeer/scanhub/internal/config"
	"github.com/magabrotheeeer/scanhub/internal/lib/jwt"
	"github.com/magabrotheeeer/scanhub/internal/lib/quota"
	"github.com/magabrotheeeer/scanhub/internal/migrations"
	adminservice "github.com/magabrotheeeer/scanhub/internal/services/admin"
	authservice "github.com/magabrotheeeer/scanhub/internal/services/auth"
	quotaservice "github.com/magabrotheeeer/scanhub/internal/services/quota"
	"github.com/magabrotheeeer/scanhub/internal/storage/objectstore"
	"github.com/magabrotheeeer/scanhub/internal/storage/repository"
)

// App инкапсулирует HTTP-сервер и его ресурсы.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
}

// New создает приложение: подключает зависимости, применяет миграции
// и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.scanhub.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	files, err := objectstore.New(cfg.ObjectStorage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	loc, err := time.LoadLocation(cfg.Quota.RolloverTimezone)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid rollover timezone %q: %w", op, cfg.Quota.RolloverTimezone, err)
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	clock := quota.SystemClock{}

	quotaSvc := quotaservice.NewQuotaService(db, cacheRedis, clock, loc, cfg.Quota.DailyAllowance, logger)
	authSvc := authservice.NewAuthService(db, files, jwtMaker, clock, loc,
		cfg.Quota.DailyAllowance, cfg.Quota.InitialDaysLeft, logger)
	adminSvc := adminservice.NewAdminService(db, quotaSvc, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, jwtMaker, authSvc, quotaSvc, adminSvc, db)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до отмены контекста или
// ошибки сервера. При отмене выполняет graceful shutdown.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if cerr := a.db.DB.Close(); cerr != nil {
			a.logger.Error("failed to close storage", slog.Any("err", cerr))
		}
		return err
	}
}
