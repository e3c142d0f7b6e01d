// Package register реализует HTTP-обработчик регистрации нового пользователя.
//
// Запрос приходит multipart-формой: текстовые поля и два файла профиля
// (фотография и PDF-документ), которые загружаются в объектное хранилище.
package register

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/scanhub/internal/http/response"
	"github.com/magabrotheeeer/scanhub/internal/lib/sl"
	authservice "github.com/magabrotheeeer/scanhub/internal/services/auth"
	"github.com/magabrotheeeer/scanhub/internal/storage/repository"
)

// Максимальный суммарный размер multipart-формы регистрации.
const maxRegisterFormSize = 32 << 20 // 32 MiB

// Request — текстовые поля формы регистрации.
type Request struct {
	FullName string `validate:"required,min=3,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
	Route    string `validate:"required"`
}

// Handler управляет HTTP-запросами на регистрацию.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики регистрации.
type Service interface {
	Register(ctx context.Context, req authservice.RegisterRequest) (string, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Зарегистрировать пользователя
// @Description Создает пользователя с файлами профиля. Поля формы: fullname, email, password, route, profilepic, profilepdf.
// @Tags Auth
// @Accept  mpfd
// @Produce  json
// @Success 200 {object} map[string]any "Пользователь создан"
// @Failure 400 {object} response.ErrorResponse "Некорректная форма"
// @Failure 409 {object} response.ErrorResponse "Почта уже зарегистрирована"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if err := r.ParseMultipartForm(maxRegisterFormSize); err != nil {
		log.Error("failed to parse multipart form", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid multipart form"))
		return
	}

	req := Request{
		FullName: r.FormValue("fullname"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Route:    r.FormValue("route"),
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	pic, picHeader, err := r.FormFile("profilepic")
	if err != nil {
		log.Error("profile picture is missing", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("profilepic file is required"))
		return
	}
	defer func() {
		_ = pic.Close()
	}()

	pdf, pdfHeader, err := r.FormFile("profilepdf")
	if err != nil {
		log.Error("profile pdf is missing", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("profilepdf file is required"))
		return
	}
	defer func() {
		_ = pdf.Close()
	}()

	uid, err := h.service.Register(r.Context(), authservice.RegisterRequest{
		FullName:       req.FullName,
		Email:          req.Email,
		Password:       req.Password,
		Route:          req.Route,
		ProfilePic:     pic,
		ProfilePicName: picHeader.Filename,
		ProfilePicType: picHeader.Header.Get("Content-Type"),
		ProfilePDF:     pdf,
		ProfilePDFName: pdfHeader.Filename,
		ProfilePDFType: pdfHeader.Header.Get("Content-Type"),
	})
	switch {
	case errors.Is(err, repository.ErrEmailTaken):
		log.Error("email already registered", slog.String("email", req.Email))
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("email already registered"))
		return
	case err != nil:
		log.Error("registration failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to register user"))
		return
	}

	log.Info("registered new user", slog.String("user_uid", uid))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user_uid": uid,
		"message":  "user created successfully",
	}))
}
