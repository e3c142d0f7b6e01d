package register

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authservice "github.com/magabrotheeeer/scanhub/internal/services/auth"
	"github.com/magabrotheeeer/scanhub/internal/storage/repository"
)

// MockService реализует интерфейс register.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Register(ctx context.Context, req authservice.RegisterRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type formFields struct {
	fullName string
	email    string
	password string
	route    string
	withPic  bool
	withPDF  bool
}

func buildMultipartForm(t *testing.T, f formFields) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	require.NoError(t, writer.WriteField("fullname", f.fullName))
	require.NoError(t, writer.WriteField("email", f.email))
	require.NoError(t, writer.WriteField("password", f.password))
	require.NoError(t, writer.WriteField("route", f.route))

	if f.withPic {
		part, err := writer.CreateFormFile("profilepic", "me.jpg")
		require.NoError(t, err)
		_, err = io.Copy(part, strings.NewReader("fake image bytes"))
		require.NoError(t, err)
	}
	if f.withPDF {
		part, err := writer.CreateFormFile("profilepdf", "docs.pdf")
		require.NoError(t, err)
		_, err = io.Copy(part, strings.NewReader("fake pdf bytes"))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestRegisterHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	validForm := formFields{
		fullName: "Test User",
		email:    "user@example.com",
		password: "secret123",
		route:    "north",
		withPic:  true,
		withPDF:  true,
	}

	tests := []struct {
		name           string
		form           formFields
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешная регистрация",
			form: validForm,
			setupMock: func(m *MockService) {
				m.On("Register", mock.Anything, mock.MatchedBy(func(req authservice.RegisterRequest) bool {
					return req.Email == "user@example.com" &&
						req.Route == "north" &&
						req.ProfilePicName == "me.jpg" &&
						req.ProfilePDFName == "docs.pdf"
				})).Return("uid-42", nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"user_uid":"uid-42"`,
		},
		{
			name: "занятая почта",
			form: validForm,
			setupMock: func(m *MockService) {
				m.On("Register", mock.Anything, mock.Anything).
					Return("", repository.ErrEmailTaken)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"error":"email already registered"`,
		},
		{
			name: "некорректная почта",
			form: formFields{
				fullName: "Test User",
				email:    "not-an-email",
				password: "secret123",
				route:    "north",
				withPic:  true,
				withPDF:  true,
			},
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Email must be a valid email`,
		},
		{
			name: "нет файла фотографии",
			form: formFields{
				fullName: "Test User",
				email:    "user@example.com",
				password: "secret123",
				route:    "north",
				withPic:  false,
				withPDF:  true,
			},
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"profilepic file is required"`,
		},
		{
			name: "нет файла PDF",
			form: formFields{
				fullName: "Test User",
				email:    "user@example.com",
				password: "secret123",
				route:    "north",
				withPic:  true,
				withPDF:  false,
			},
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"profilepdf file is required"`,
		},
		{
			name: "ошибка сервиса",
			form: validForm,
			setupMock: func(m *MockService) {
				m.On("Register", mock.Anything, mock.Anything).
					Return("", errors.New("s3 unavailable"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"failed to register user"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			body, contentType := buildMultipartForm(t, tt.form)
			req := httptest.NewRequest(http.MethodPost, "/register", body)
			req.Header.Set("Content-Type", contentType)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
