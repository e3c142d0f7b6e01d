// Package services реализует ежедневный обход всех пользователей: в заданное
// время суток каждому применяется суточный сброс квоты и отсчёт дней подписки.
//
// Обход страхует ленивый путь: пользователи, не проявлявшие активности, все
// равно получают сброс по расписанию. Сбой на одной записи не прерывает обход
// остальных, а конфликт версий означает, что ленивый путь успел первым.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/magabrotheeeer/scanhub/internal/lib/quota"
	"github.com/magabrotheeeer/scanhub/internal/lib/sl"
	"github.com/magabrotheeeer/scanhub/internal/metrics"
	"github.com/magabrotheeeer/scanhub/internal/models"
	"github.com/magabrotheeeer/scanhub/internal/rabbitmq"
	"github.com/magabrotheeeer/scanhub/internal/storage/repository"
)

// Размер страницы при обходе таблицы пользователей.
const defaultPageSize = 200

// UserRepository определяет методы хранилища, нужные обходу.
type UserRepository interface {
	// ListUsersPage возвращает страницу пользователей и токен следующей страницы.
	ListUsersPage(ctx context.Context, afterUID string, limit int) ([]*models.User, string, error)
	// UpdateUserQuota атомарно записывает поля квоты, сверяя версию записи.
	UpdateUserQuota(ctx context.Context, user *models.User) error
}

// Publisher публикует события в брокер сообщений.
type Publisher interface {
	Publish(exchange, routingKey string, message any) error
}

// ExpiredEvent — событие полного истечения подписки, публикуемое обходом.
type ExpiredEvent struct {
	UserUID  string    `json:"user_uid"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Date     time.Time `json:"date"`
}

// SweepService запускает суточный сброс по расписанию для всех пользователей.
type SweepService struct {
	repo      UserRepository
	publisher Publisher
	clock     quota.Clock
	loc       *time.Location
	allowance int
	pageSize  int
	hour      int
	minute    int
	running   atomic.Bool
	log       *slog.Logger
}

// NewSweepService создает новый экземпляр SweepService.
// triggerTime — время суток запуска обхода в формате "HH:MM" в поясе loc.
func NewSweepService(repo UserRepository, publisher Publisher, clock quota.Clock,
	loc *time.Location, allowance int, triggerTime string, log *slog.Logger) (*SweepService, error) {
	const op = "services.sweep.NewSweepService"

	trigger, err := time.Parse("15:04", triggerTime)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid trigger time %q: %w", op, triggerTime, err)
	}

	return &SweepService{
		repo:      repo,
		publisher: publisher,
		clock:     clock,
		loc:       loc,
		allowance: allowance,
		pageSize:  defaultPageSize,
		hour:      trigger.Hour(),
		minute:    trigger.Minute(),
		log:       log,
	}, nil
}

// NextTrigger возвращает ближайший момент запуска обхода строго после now.
func (s *SweepService) NextTrigger(now time.Time) time.Time {
	now = now.In(s.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run ждет очередного срабатывания расписания и выполняет обход, пока
// контекст не будет отменен.
func (s *SweepService) Run(ctx context.Context) error {
	for {
		now := s.clock.Now()
		next := s.NextTrigger(now)
		s.log.Info("daily sweep scheduled", slog.Time("next_run", next))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			s.SweepAll(ctx)
		}
	}
}

// SweepAll обходит всех пользователей постранично и применяет каждому суточный
// сброс. Повторный вход при незавершенном обходе пропускается: перекрывающиеся
// срабатывания не должны писать одни и те же записи параллельно. Возвращает
// количество обработанных и количество пропущенных из-за сбоев записей.
func (s *SweepService) SweepAll(ctx context.Context) (processed, failed int) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("sweep is already running, skipping trigger")
		return 0, 0
	}
	defer s.running.Store(false)

	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	s.log.Info("starting daily sweep")

	token := ""
	for {
		users, next, err := s.repo.ListUsersPage(ctx, token, s.pageSize)
		if err != nil {
			s.log.Error("failed to list users page", sl.Err(err))
			return processed, failed
		}

		for _, user := range users {
			select {
			case <-ctx.Done():
				s.log.Info("sweep interrupted by shutdown",
					slog.Int("processed", processed), slog.Int("failed", failed))
				return processed, failed
			default:
			}

			if err := s.rolloverUser(ctx, user); err != nil {
				failed++
				metrics.SweepUsersTotal.WithLabelValues("failed").Inc()
				s.log.Error("failed to roll over user, skipping",
					slog.String("user_uid", user.UID), sl.Err(err))
				continue
			}
			processed++
			metrics.SweepUsersTotal.WithLabelValues("ok").Inc()
		}

		if next == "" {
			break
		}
		token = next
	}

	s.log.Info("daily sweep finished",
		slog.Int("processed", processed),
		slog.Int("failed", failed),
		slog.Duration("took", time.Since(start)))
	return processed, failed
}

// rolloverUser применяет суточный сброс к одной записи и сохраняет ее.
// Конфликт версий не считается сбоем: ленивый путь уже обновил запись.
func (s *SweepService) rolloverUser(ctx context.Context, user *models.User) error {
	st, changed := quota.ApplyRollover(quota.State{
		ScanCount:    user.ScanCount,
		DaysLeft:     user.DaysLeft,
		Paid:         user.Paid,
		LastScanDate: user.LastScanDate,
	}, s.clock.Now(), s.loc, s.allowance)
	if !changed {
		return nil
	}

	wasPaid := user.Paid
	user.ScanCount = st.ScanCount
	user.DaysLeft = st.DaysLeft
	user.Paid = st.Paid
	user.LastScanDate = st.LastScanDate

	if err := s.repo.UpdateUserQuota(ctx, user); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			s.log.Info("user already rolled over by lazy path",
				slog.String("user_uid", user.UID))
			return nil
		}
		return err
	}

	if wasPaid && !user.Paid {
		s.publishExpired(user)
	}
	return nil
}

func (s *SweepService) publishExpired(user *models.User) {
	if s.publisher == nil {
		return
	}
	event := ExpiredEvent{
		UserUID:  user.UID,
		Email:    user.Email,
		FullName: user.FullName,
		Date:     user.LastScanDate,
	}
	if err := s.publisher.Publish(rabbitmq.NotificationsExchange, rabbitmq.ExpiredRoutingKey, event); err != nil {
		s.log.Error("failed to publish expired event",
			slog.String("user_uid", user.UID), sl.Err(err))
	}
}
