// Package processinactive реализует HTTP-обработчик пакетной архивации всех
// пользователей, прошедших отсечку неактивности.
//
// Ошибки отдельных пользователей попадают в отчёт и не меняют статус ответа:
// 500 возвращается только если выборку не удалось загрузить вовсе.
package processinactive

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

// Handler обрабатывает запросы на пакетную архивацию неактивных пользователей.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики пакетной архивации.
type Service interface {
	ProcessInactive(ctx context.Context, now time.Time) (*models.ArchiveReport, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP обрабатывает HTTP-запрос на пакетную архивацию.
//
// @Summary      Архивировать всех неактивных пользователей
// @Security     BearerAuth
// @Tags         archive
// @Produce      json
// @Success      200 {object} response.Response
// @Failure      500 {object} response.ErrorResponse
// @Router       /archive/process-inactive [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.archive.processinactive"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	report, err := h.service.ProcessInactive(r.Context(), time.Now())
	if err != nil {
		log.Error("failed to process inactive users", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to process inactive users"))
		return
	}

	log.Info("processed inactive users",
		slog.Int("archived", len(report.Archived)),
		slog.Int("failed", len(report.Failed)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"report": report,
	}))
}
