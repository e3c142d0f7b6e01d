// Package reject реализует HTTP-обработчик отклонения пользователя модератором.
package reject

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
	"github.com/magabrotheeeer/scanhub/internal/storage/repository"
)

// Request — тело запроса на отклонение.
type Request struct {
	Email         string `json:"email" validate:"required,email"`
	RejectMessage string `json:"reject_message" validate:"required,max=500"`
}

// Handler управляет HTTP-запросами отклонения пользователей.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики отклонения.
type Service interface {
	Reject(ctx context.Context, email, rejectMessage string) error
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
// @Summary Отклонить пользователя
// @Description Снимает подтверждение пользователя и сохраняет сообщение с причиной отклонения.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body Request true "Почта и причина отклонения"
// @Success 200 {object} response.Response "Пользователь отклонен"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Security BearerAuth
// @Router /admin/reject [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.reject"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	err := h.service.Reject(r.Context(), req.Email, req.RejectMessage)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		log.Error("user not found", slog.String("email", req.Email))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	case err != nil:
		log.Error("failed to reject user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to reject user"))
		return
	}

	log.Info("user rejected", slog.String("email", req.Email))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "user rejected",
	}))
}
