// Package status реализует HTTP-обработчик запроса состояния квоты и подписки
// текущего пользователя.
package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/scanhub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/scanhub/internal/http/response"
	"github.com/magabrotheeeer/scanhub/internal/lib/sl"
	"github.com/magabrotheeeer/scanhub/internal/models"
	quotaservice "github.com/magabrotheeeer/scanhub/internal/services/quota"
	"github.com/magabrotheeeer/scanhub/internal/storage/repository"
)

// Handler управляет HTTP-запросами состояния пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики запроса состояния.
type Service interface {
	GetStatus(ctx context.Context, userUID string) (*models.Status, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Состояние квоты и подписки
// @Description Возвращает остаток сканирований, дни подписки и статус модерации текущего пользователя.
// @Tags Scan
// @Produce  json
// @Success 200 {object} models.Status "Текущее состояние"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Security BearerAuth
// @Router /status [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.scan.status"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	status, err := h.service.GetStatus(r.Context(), userUID)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		log.Error("user not found", slog.String("user_uid", userUID))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	case errors.Is(err, quotaservice.ErrTryAgain):
		log.Warn("record is busy", slog.String("user_uid", userUID))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("try again later"))
		return
	case err != nil:
		log.Error("failed to get status", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not get status"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(status))
}
