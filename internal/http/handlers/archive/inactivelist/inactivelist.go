// Package inactivelist реализует HTTP-обработчик для получения списка
// пользователей, прошедших отсечку неактивности.
package inactivelist

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/edtechhq/user-lifecycle/internal/http/response"
	"github.com/edtechhq/user-lifecycle/internal/lib/sl"
	"github.com/edtechhq/user-lifecycle/internal/models"
)

// Handler обрабатывает запросы на получение списка неактивных пользователей.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики выборки неактивных пользователей.
type Service interface {
	InactiveUsers(ctx context.Context, now time.Time) ([]*models.User, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP обрабатывает HTTP-запрос на получение списка неактивных пользователей.
//
// @Summary      Список неактивных пользователей
// @Security     BearerAuth
// @Tags         archive
// @Produce      json
// @Success      200 {object} response.Response
// @Failure      500 {object} response.ErrorResponse
// @Router       /archive/inactive-users [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.archive.inactivelist"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	res, err := h.service.InactiveUsers(r.Context(), time.Now())
	if err != nil {
		log.Error("failed to list inactive users", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list inactive users"))
		return
	}

	log.Info("list inactive users", "count", len(res))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count":     len(res),
		"inactive_users": res,
	}))
}
