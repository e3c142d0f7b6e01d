// Package analytics реализует HTTP-обработчик аналитики по маршрутам пользователей.
package analytics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/scanhub/internal/http/response"
	"github.com/magabrotheeeer/scanhub/internal/lib/sl"
	"github.com/magabrotheeeer/scanhub/internal/models"
)

// Handler управляет HTTP-запросами аналитики.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики аналитики.
type Service interface {
	Analytics(ctx context.Context) (*models.RouteAnalytics, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Аналитика по маршрутам
// @Description Возвращает распределение пользователей по маршрутам и их общее количество.
// @Tags Admin
// @Produce  json
// @Success 200 {object} models.RouteAnalytics "Распределение по маршрутам"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка"
// @Security BearerAuth
// @Router /admin/analytics [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.analytics"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	result, err := h.service.Analytics(r.Context())
	if err != nil {
		log.Error("failed to collect analytics", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to collect analytics"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(result))
}
