// Package sweeper собирает приложение ежедневного обхода: подключение к
// брокеру сообщений и хранилищу, сервис обхода и его запуск по расписанию.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/scanhub/internal/config"
	"github.com/magabrotheeeer/scanhub/internal/lib/quota"
	"github.com/magabrotheeeer/scanhub/internal/rabbitmq"
	sweepservice "github.com/magabrotheeeer/scanhub/internal/services/sweep"
	"github.com/magabrotheeeer/scanhub/internal/storage/repository"
)

// App представляет приложение ежедневного обхода.
type App struct {
	sweepService *sweepservice.SweepService
	conn         *amqp.Connection
	ch           *amqp.Channel
	db           *repository.Storage
	logger       *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения обхода.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn)
	if err != nil {
		closeResources(nil, conn, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := waitForDB(db); err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Quota.RolloverTimezone)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, fmt.Errorf("invalid rollover timezone %q: %w", cfg.Quota.RolloverTimezone, err)
	}

	sweepService, err := sweepservice.NewSweepService(db, rabbitmq.NewPublisher(ch),
		quota.SystemClock{}, loc, cfg.Quota.DailyAllowance, cfg.Quota.SweepTriggerTime, logger)
	if err != nil {
		closeResources(ch, conn, logger)
		return nil, err
	}

	return &App{
		sweepService: sweepService,
		conn:         conn,
		ch:           ch,
		db:           db,
		logger:       logger,
	}, nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", "error", err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", "error", err)
		}
	}
}

// Run запускает обход по расписанию и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	err := a.sweepService.Run(ctx)

	a.logger.Info("shutting down sweeper service")

	if cerr := a.ch.Close(); cerr != nil {
		a.logger.Error("failed to close channel", slog.Any("err", cerr))
	}
	if cerr := a.conn.Close(); cerr != nil {
		a.logger.Error("failed to close connection", slog.Any("err", cerr))
	}
	if cerr := a.db.DB.Close(); cerr != nil {
		a.logger.Error("failed to close storage", slog.Any("err", cerr))
	}

	return err
}
