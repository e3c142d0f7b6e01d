// Package services содержит логику бизнес-уровня для регистрации и
// аутентификации пользователей.
package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/scanhub/internal/lib/jwt"
	"github.com/magabrotheeeer/scanhub/internal/lib/password"
	"github.com/magabrotheeeer/scanhub/internal/lib/quota"
	"github.com/magabrotheeeer/scanhub/internal/metrics"
	"github.com/magabrotheeeer/scanhub/internal/models"
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его UID.
	RegisterUser(ctx context.Context, user models.User) (string, error)
	// GetUserByEmail возвращает пользователя по почте или ошибку, если не найден.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// FileStore описывает загрузку файлов профиля в объектное хранилище.
type FileStore interface {
	Upload(ctx context.Context, prefix, filename, contentType string, data io.Reader) (string, error)
}

// RegisterRequest — данные регистрации, включая файлы профиля.
type RegisterRequest struct {
	FullName string
	Email    string
	Password string
	Route    string

	ProfilePic     io.Reader
	ProfilePicName string
	ProfilePicType string

	ProfilePDF     io.Reader
	ProfilePDFName string
	ProfilePDFType string
}

// AuthService отвечает за регистрацию и авторизацию пользователей.
type AuthService struct {
	users    UserRepository
	files    FileStore
	jwtMaker jwt.Maker
	clock    quota.Clock
	loc      *time.Location

	allowance       int
	initialDaysLeft int

	log *slog.Logger
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, files FileStore, jwtMaker jwt.Maker,
	clock quota.Clock, loc *time.Location, allowance, initialDaysLeft int,
	log *slog.Logger) *AuthService {
	return &AuthService{
		users:           users,
		files:           files,
		jwtMaker:        jwtMaker,
		clock:           clock,
		loc:             loc,
		allowance:       allowance,
		initialDaysLeft: initialDaysLeft,
		log:             log,
	}
}

// Register создает нового пользователя: хэширует пароль, загружает файлы
// профиля в объектное хранилище и инициализирует квоту значениями по
// умолчанию (дневной лимит, длительность подписки, текущая дата).
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return "", err
	}

	picKey, err := s.files.Upload(ctx, "profilepic", req.ProfilePicName, req.ProfilePicType, req.ProfilePic)
	if err != nil {
		return "", err
	}
	pdfKey, err := s.files.Upload(ctx, "profilepdf", req.ProfilePDFName, req.ProfilePDFType, req.ProfilePDF)
	if err != nil {
		return "", err
	}

	now := s.clock.Now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	user := models.User{
		FullName:      req.FullName,
		Email:         req.Email,
		PasswordHash:  hashed,
		Role:          "user", // дефолтная роль при регистрации
		Route:         req.Route,
		ProfilePicKey: picKey,
		ProfilePDFKey: pdfKey,
		Paid:          true,
		ScanCount:     s.allowance,
		DaysLeft:      s.initialDaysLeft,
		LastScanDate:  today,
	}

	uid, err := s.users.RegisterUser(ctx, user)
	if err != nil {
		return "", err
	}

	metrics.UsersRegisteredTotal.Inc()
	s.log.Info("registered new user",
		slog.String("user_uid", uid),
		slog.String("route", user.Route))
	return uid, nil
}

// Login проверяет пароль пользователя и генерирует JWT.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (token, role string, err error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", "", err
	}
	if err := password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		return "", "", ErrInvalidCredentials
	}
	token, err = s.jwtMaker.GenerateToken(user.UID, user.Email, user.Role)
	if err != nil {
		return "", "", err
	}
	return token, user.Role, nil
}
