package markpaid

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/scanhub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/scanhub/internal/storage/repository"
)

// MockService реализует интерфейс markpaid.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) MarkPaid(ctx context.Context, userUID string) error {
	return m.Called(ctx, userUID).Error(0)
}

func TestMarkPaidHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "успешная отметка оплаты",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("MarkPaid", mock.Anything, "uid-1").Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"message":"subscription is active"`,
		},
		{
			name:    "пользователь не найден",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("MarkPaid", mock.Anything, "uid-1").Return(repository.ErrUserNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"user not found"`,
		},
		{
			name:    "ошибка хранилища",
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("MarkPaid", mock.Anything, "uid-1").Return(errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not mark subscription paid"`,
		},
		{
			name:           "нет uid в контексте",
			userUID:        "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/subscription/pay", nil)
			if tt.userUID != "" {
				ctx := context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID)
				req = req.WithContext(ctx)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
