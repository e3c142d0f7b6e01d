package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/scanhub/internal/lib/jwt"
	"github.com/magabrotheeeer/scanhub/internal/lib/password"
	"github.com/magabrotheeeer/scanhub/internal/models"
	"github.com/magabrotheeeer/scanhub/internal/storage/repository"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) RegisterUser(ctx context.Context, user models.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}
func (m *RepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type FileStoreMock struct{ mock.Mock }

func (m *FileStoreMock) Upload(ctx context.Context, prefix, filename, contentType string, data io.Reader) (string, error) {
	args := m.Called(ctx, prefix, filename, contentType, data)
	return args.String(0), args.Error(1)
}

type JWTMock struct{ mock.Mock }

func (m *JWTMock) GenerateToken(userUID, email, role string) (string, error) {
	args := m.Called(userUID, email, role)
	return args.String(0), args.Error(1)
}
func (m *JWTMock) ParseToken(tokenStr string) (*jwt.CustomClaims, error) {
	args := m.Called(tokenStr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jwt.CustomClaims), args.Error(1)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func registerRequest() RegisterRequest {
	return RegisterRequest{
		FullName:       "Test User",
		Email:          "user@example.com",
		Password:       "secret123",
		Route:          "north",
		ProfilePic:     strings.NewReader("pic"),
		ProfilePicName: "me.jpg",
		ProfilePicType: "image/jpeg",
		ProfilePDF:     strings.NewReader("pdf"),
		ProfilePDFName: "docs.pdf",
		ProfilePDFType: "application/pdf",
	}
}

func TestAuthService_Register(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("успешная регистрация инициализирует квоту", func(t *testing.T) {
		repo := new(RepoMock)
		files := new(FileStoreMock)

		files.On("Upload", mock.Anything, "profilepic", "me.jpg", "image/jpeg", mock.Anything).
			Return("profilepic/key1.jpg", nil).Once()
		files.On("Upload", mock.Anything, "profilepdf", "docs.pdf", "application/pdf", mock.Anything).
			Return("profilepdf/key2.pdf", nil).Once()
		repo.On("RegisterUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
			return u.Email == "user@example.com" &&
				u.Role == "user" &&
				u.Paid &&
				u.ScanCount == 2 &&
				u.DaysLeft == 30 &&
				u.LastScanDate.Equal(today) &&
				u.ProfilePicKey == "profilepic/key1.jpg" &&
				u.ProfilePDFKey == "profilepdf/key2.pdf" &&
				password.CompareHash(u.PasswordHash, "secret123") == nil
		})).Return("uid-42", nil).Once()

		maker := new(JWTMock)
		svc := NewAuthService(repo, files, maker, fixedClock{now}, time.UTC, 2, 30, newNoopLogger())
		uid, err := svc.Register(context.Background(), registerRequest())

		require.NoError(t, err)
		assert.Equal(t, "uid-42", uid)
		repo.AssertExpectations(t)
		files.AssertExpectations(t)
	})

	t.Run("занятая почта", func(t *testing.T) {
		repo := new(RepoMock)
		files := new(FileStoreMock)

		files.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("key", nil).Twice()
		repo.On("RegisterUser", mock.Anything, mock.Anything).
			Return("", repository.ErrEmailTaken).Once()

		maker := new(JWTMock)
		svc := NewAuthService(repo, files, maker, fixedClock{now}, time.UTC, 2, 30, newNoopLogger())
		_, err := svc.Register(context.Background(), registerRequest())

		assert.ErrorIs(t, err, repository.ErrEmailTaken)
	})
}

func TestAuthService_Login(t *testing.T) {
	hash, err := password.GetHash("secret123")
	require.NoError(t, err)

	stored := &models.User{
		UID:          "uid-42",
		Email:        "user@example.com",
		PasswordHash: hash,
		Role:         "user",
	}

	tests := []struct {
		name       string
		rawPass    string
		setupMocks func(r *RepoMock, j *JWTMock)
		wantToken  string
		wantErr    error
	}{
		{
			name:    "успешный вход",
			rawPass: "secret123",
			setupMocks: func(r *RepoMock, j *JWTMock) {
				r.On("GetUserByEmail", mock.Anything, "user@example.com").Return(stored, nil).Once()
				j.On("GenerateToken", "uid-42", "user@example.com", "user").Return("token-abc", nil).Once()
			},
			wantToken: "token-abc",
		},
		{
			name:    "неверный пароль",
			rawPass: "wrongpass",
			setupMocks: func(r *RepoMock, _ *JWTMock) {
				r.On("GetUserByEmail", mock.Anything, "user@example.com").Return(stored, nil).Once()
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:    "пользователь не найден",
			rawPass: "secret123",
			setupMocks: func(r *RepoMock, _ *JWTMock) {
				r.On("GetUserByEmail", mock.Anything, "user@example.com").
					Return(nil, repository.ErrUserNotFound).Once()
			},
			wantErr: repository.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			maker := new(JWTMock)
			tt.setupMocks(repo, maker)

			svc := NewAuthService(repo, new(FileStoreMock), maker, fixedClock{time.Now()}, time.UTC, 2, 30, newNoopLogger())
			token, role, err := svc.Login(context.Background(), "user@example.com", tt.rawPass)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantToken, token)
				assert.Equal(t, "user", role)
			}
			repo.AssertExpectations(t)
			maker.AssertExpectations(t)
		})
	}
}
