// Package services содержит бизнес-логику суточной квоты сканирований
// и жизненного цикла подписки пользователя.
//
// Каждая операция сначала выполняет ленивый суточный сброс (EnsureFresh),
// затем применяет собственную мутацию, и сохраняет результат одной атомарной
// записью с оптимистичной блокировкой. Благодаря этому счетчики пользователя
// корректны независимо от того, успел ли отработать ежедневный обход.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/scanhub/internal/lib/quota"
	"github.com/magabrotheeeer/scanhub/internal/lib/sl"
	"github.com/magabrotheeeer/scanhub/internal/metrics"
	"github.com/magabrotheeeer/scanhub/internal/models"
	"github.com/magabrotheeeer/scanhub/internal/storage/repository"
)

// Ошибки уровня бизнес-логики.
var (
	// ErrQuotaExceeded означает исчерпание дневного лимита сканирований.
	// Это не сбой, а штатный отказ операции.
	ErrQuotaExceeded = errors.New("scan limit reached for today")
	// ErrTryAgain означает, что запись многократно менялась конкурентно
	// и операцию стоит повторить позже.
	ErrTryAgain = errors.New("record is busy, try again")
)

// Число повторов записи при конфликте версий, прежде чем вернуть ErrTryAgain.
const maxCASRetries = 3

const statusCacheTTL = 10 * time.Minute

// UserRepository определяет методы хранилища, нужные сервису квоты.
type UserRepository interface {
	// GetUserByUID возвращает пользователя по UID или repository.ErrUserNotFound.
	GetUserByUID(ctx context.Context, userUID string) (*models.User, error)
	// UpdateUserQuota атомарно записывает поля квоты, сверяя версию записи.
	UpdateUserQuota(ctx context.Context, user *models.User) error
	// SetVerification обновляет статус модерации пользователя.
	SetVerification(ctx context.Context, userUID string, verified bool, rejectMessage string) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// QuotaService реализует операции над квотой и подпиской пользователя.
type QuotaService struct {
	repo      UserRepository
	cache     Cache
	clock     quota.Clock
	loc       *time.Location
	allowance int
	log       *slog.Logger
}

// NewQuotaService создает новый экземпляр QuotaService.
// loc — часовой пояс, в котором определяется граница суток,
// allowance — дневной лимит сканирований оплаченного пользователя.
func NewQuotaService(repo UserRepository, cache Cache, clock quota.Clock,
	loc *time.Location, allowance int, log *slog.Logger) *QuotaService {
	return &QuotaService{
		repo:      repo,
		cache:     cache,
		clock:     clock,
		loc:       loc,
		allowance: allowance,
		log:       log,
	}
}

func stateOf(u *models.User) quota.State {
	return quota.State{
		ScanCount:    u.ScanCount,
		DaysLeft:     u.DaysLeft,
		Paid:         u.Paid,
		LastScanDate: u.LastScanDate,
	}
}

func applyState(u *models.User, st quota.State) {
	u.ScanCount = st.ScanCount
	u.DaysLeft = st.DaysLeft
	u.Paid = st.Paid
	u.LastScanDate = st.LastScanDate
}

// statusCacheKey включает текущую дату в часовом поясе сброса, поэтому
// закешированный ответ никогда не переживает границу суток.
func (s *QuotaService) statusCacheKey(userUID string) string {
	return fmt.Sprintf("status:%s:%s", userUID, s.clock.Now().In(s.loc).Format("2006-01-02"))
}

func (s *QuotaService) invalidateStatus(userUID string) {
	key := s.statusCacheKey(userUID)
	if err := s.cache.Invalidate(key); err != nil {
		s.log.Warn("failed to invalidate status cache", slog.String("key", key), sl.Err(err))
	}
}

// EnsureFresh возвращает запись пользователя, к которой применен ленивый
// суточный сброс. Если сброс изменил состояние, оно сохраняется до возврата.
// При конфликте версий чтение и запись повторяются ограниченное число раз.
func (s *QuotaService) EnsureFresh(ctx context.Context, userUID string) (*models.User, error) {
	for range maxCASRetries {
		user, err := s.repo.GetUserByUID(ctx, userUID)
		if err != nil {
			return nil, err
		}

		st, changed := quota.ApplyRollover(stateOf(user), s.clock.Now(), s.loc, s.allowance)
		if !changed {
			return user, nil
		}

		applyState(user, st)
		err = s.repo.UpdateUserQuota(ctx, user)
		if err == nil {
			s.invalidateStatus(userUID)
			s.log.Info("applied lazy rollover",
				slog.String("user_uid", userUID),
				slog.Int("scan_count", user.ScanCount),
				slog.Int("days_left", user.DaysLeft),
				slog.Bool("paid", user.Paid))
			return user, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, ErrTryAgain
}

// ConsumeScan списывает одно сканирование из дневной квоты пользователя.
// Сброс и списание выполняются одной атомарной записью, поэтому два
// конкурирующих запроса не могут списать одно и то же сканирование дважды.
// Возвращает остаток сканирований либо ErrQuotaExceeded без мутации.
func (s *QuotaService) ConsumeScan(ctx context.Context, userUID string) (int, error) {
	for range maxCASRetries {
		user, err := s.repo.GetUserByUID(ctx, userUID)
		if err != nil {
			return 0, err
		}

		st, changed := quota.ApplyRollover(stateOf(user), s.clock.Now(), s.loc, s.allowance)
		if st.ScanCount <= 0 {
			if changed {
				applyState(user, st)
				err = s.repo.UpdateUserQuota(ctx, user)
				if errors.Is(err, repository.ErrVersionConflict) {
					continue
				}
				if err != nil {
					return 0, err
				}
				s.invalidateStatus(userUID)
			}
			metrics.QuotaExceededTotal.Inc()
			return 0, ErrQuotaExceeded
		}

		st.ScanCount--
		applyState(user, st)
		err = s.repo.UpdateUserQuota(ctx, user)
		if err == nil {
			metrics.ScansConsumedTotal.Inc()
			s.invalidateStatus(userUID)
			s.log.Info("scan consumed",
				slog.String("user_uid", userUID),
				slog.Int("remaining", user.ScanCount))
			return user.ScanCount, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return 0, err
		}
	}
	return 0, ErrTryAgain
}

// GetStatus возвращает состояние квоты и подписки пользователя, предварительно
// применив ленивый сброс. Ответ кешируется до первого изменения записи, но не
// дольше текущих суток: дата входит в ключ кеша.
func (s *QuotaService) GetStatus(ctx context.Context, userUID string) (*models.Status, error) {
	cacheKey := s.statusCacheKey(userUID)

	var cached models.Status
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read status cache", slog.String("key", cacheKey), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	user, err := s.EnsureFresh(ctx, userUID)
	if err != nil {
		return nil, err
	}

	status := &models.Status{
		Paid:          user.Paid,
		DaysLeft:      user.DaysLeft,
		ScanCount:     user.ScanCount,
		Verified:      user.Verified,
		RejectMessage: user.RejectMessage,
	}
	if err := s.cache.Set(cacheKey, status, statusCacheTTL); err != nil {
		s.log.Warn("failed to cache status", slog.String("key", cacheKey), sl.Err(err))
	}
	return status, nil
}

// MarkPaid включает подписку пользователя. Операция идемпотентна: для уже
// оплаченного пользователя это no-op. Остаток дней подписки намеренно не
// изменяется: пользователь, оплативший после полного истечения, остается с
// DaysLeft = 0 до отдельного решения о перевзведении счетчика.
func (s *QuotaService) MarkPaid(ctx context.Context, userUID string) error {
	for range maxCASRetries {
		user, err := s.repo.GetUserByUID(ctx, userUID)
		if err != nil {
			return err
		}

		st, changed := quota.ApplyRollover(stateOf(user), s.clock.Now(), s.loc, s.allowance)
		if st.Paid && !changed {
			return nil
		}
		marked := !st.Paid
		st.Paid = true
		applyState(user, st)

		err = s.repo.UpdateUserQuota(ctx, user)
		if err == nil {
			s.invalidateStatus(userUID)
			if marked {
				s.log.Info("subscription marked paid",
					slog.String("user_uid", userUID),
					slog.Int("days_left", user.DaysLeft))
			}
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
	}
	return ErrTryAgain
}

// SetVerification обновляет статус модерации пользователя. Мутация не зависит
// от состояния квоты и выполняется напрямую в хранилище.
func (s *QuotaService) SetVerification(ctx context.Context, userUID string, verified bool, rejectMessage string) error {
	if err := s.repo.SetVerification(ctx, userUID, verified, rejectMessage); err != nil {
		return err
	}
	s.invalidateStatus(userUID)
	return nil
}
