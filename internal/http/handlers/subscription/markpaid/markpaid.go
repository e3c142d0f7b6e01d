// Package markpaid реализует HTTP-обработчик отметки подписки как оплаченной.
//
// Остаток дней подписки при оплате не изменяется: повторная оплата после
// полного истечения оставляет нулевой счетчик дней.
package markpaid

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

// Handler управляет HTTP-запросами отметки оплаты.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики отметки оплаты.
type Service interface {
	MarkPaid(ctx context.Context, userUID string) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Отметить подписку оплаченной
// @Description Включает подписку текущего пользователя. Для уже оплаченной подписки операция идемпотентна.
// @Tags Subscription
// @Produce  json
// @Success 200 {object} response.Response "Подписка активна"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Security BearerAuth
// @Router /subscription/pay [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.markpaid"
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

	err := h.service.MarkPaid(r.Context(), userUID)
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
		log.Error("failed to mark paid", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not mark subscription paid"))
		return
	}

	log.Info("subscription marked paid", slog.String("user_uid", userUID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "subscription is active",
	}))
}
