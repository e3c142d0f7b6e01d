// Package services содержит бизнес-логику административных операций:
// подтверждение и отклонение пользователей модератором, аналитика по маршрутам.
package services

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/scanhub/internal/models"
)

// UserFinder определяет методы чтения пользователей из хранилища.
type UserFinder interface {
	// GetUserByEmail возвращает пользователя по почте или ошибку, если не найден.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// CountUsersByRoute возвращает количество пользователей по маршрутам.
	CountUsersByRoute(ctx context.Context) (*models.RouteAnalytics, error)
}

// VerificationSetter обновляет статус модерации пользователя.
// Реализуется сервисом квоты, чтобы запись инвалидировала кеш статуса.
type VerificationSetter interface {
	SetVerification(ctx context.Context, userUID string, verified bool, rejectMessage string) error
}

// AdminService реализует операции модерации и аналитики.
type AdminService struct {
	users        UserFinder
	verification VerificationSetter
	log          *slog.Logger
}

// NewAdminService создает новый экземпляр AdminService.
func NewAdminService(users UserFinder, verification VerificationSetter, log *slog.Logger) *AdminService {
	return &AdminService{
		users:        users,
		verification: verification,
		log:          log,
	}
}

// Verify подтверждает пользователя по почте и очищает сообщение об отклонении.
func (s *AdminService) Verify(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.verification.SetVerification(ctx, user.UID, true, ""); err != nil {
		return err
	}
	s.log.Info("user verified", slog.String("user_uid", user.UID))
	return nil
}

// Reject отклоняет пользователя по почте с сообщением для него.
func (s *AdminService) Reject(ctx context.Context, email, rejectMessage string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.verification.SetVerification(ctx, user.UID, false, rejectMessage); err != nil {
		return err
	}
	s.log.Info("user rejected", slog.String("user_uid", user.UID))
	return nil
}

// Analytics возвращает распределение пользователей по маршрутам.
func (s *AdminService) Analytics(ctx context.Context) (*models.RouteAnalytics, error) {
	return s.users.CountUsersByRoute(ctx)
}
