// Package consume реализует HTTP-обработчик списания одного сканирования
// из дневной квоты пользователя.
//
// Handler извлекает uid пользователя из контекста, вызывает бизнес-логику
// списания и возвращает остаток сканирований в JSON-формате. Исчерпание
// квоты отличимо от инфраструктурных сбоев: клиент получает 403 с понятным
// сообщением, а не 500.
package consume

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
	quotaservice "github.com/magabrotheeeer/scanhub/internal/services/quota"
	"github.com/magabrotheeeer/scanhub/internal/storage/repository"
)

// Handler управляет HTTP-запросами на списание сканирования.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики списания сканирования.
type Service interface {
	ConsumeScan(ctx context.Context, userUID string) (int, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Списать одно сканирование
// @Description Списывает одно сканирование из дневной квоты текущего пользователя. Возвращает остаток.
// @Tags Scan
// @Produce  json
// @Success 200 {object} map[string]any "Сканирование списано"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Дневной лимит исчерпан"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 503 {object} response.ErrorResponse "Запись занята, повторите позже"
// @Security BearerAuth
// @Router /scan [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.scan.consume"
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

	remaining, err := h.service.ConsumeScan(r.Context(), userUID)
	switch {
	case errors.Is(err, quotaservice.ErrQuotaExceeded):
		log.Info("scan limit reached", slog.String("user_uid", userUID))
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("scan limit reached for today"))
		return
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
		log.Error("failed to consume scan", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not consume scan"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"remaining_scans": remaining,
	}))
}
