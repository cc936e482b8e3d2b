// Package archivedlist реализует HTTP-обработчик для получения списка
// архивных записей с пагинацией.
package archivedlist

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/edtechhq/user-lifecycle/internal/http/response"
	"github.com/edtechhq/user-lifecycle/internal/lib/sl"
	"github.com/edtechhq/user-lifecycle/internal/models"
)

// Handler обрабатывает запросы на получение списка архивных записей.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики чтения архива.
type Service interface {
	ListArchived(ctx context.Context, limit, offset int) ([]*models.ArchivedUser, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP обрабатывает HTTP-запрос на получение списка архивных записей.
//
// @Summary      Список архивных записей
// @Security     BearerAuth
// @Tags         archive
// @Produce      json
// @Param        limit   query int false "Максимум записей в ответе"
// @Param        offset  query int false "Смещение от начала списка"
// @Success      200 {object} response.Response
// @Failure      500 {object} response.ErrorResponse
// @Router       /archive/archived [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.archive.archivedlist"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	res, err := h.service.ListArchived(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list archived users", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list archived users"))
		return
	}

	log.Info("list archived users", "count", len(res))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count":     len(res),
		"archived_users": res,
	}))
}
