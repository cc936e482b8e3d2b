// Package runchecks реализует HTTP-обработчик ручного запуска полного цикла
// обработки неактивности: напоминания и архивация.
package runchecks

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

// Handler обрабатывает запросы на ручной запуск цикла обработки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс запуска цикла обработки неактивности.
type Service interface {
	Run(ctx context.Context, now time.Time) (*models.JobReport, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP обрабатывает HTTP-запрос на запуск цикла обработки.
//
// @Summary      Запустить цикл проверок неактивности
// @Security     BearerAuth
// @Tags         archive
// @Produce      json
// @Success      200 {object} response.Response
// @Failure      500 {object} response.ErrorResponse
// @Router       /archive/run-checks [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.archive.runchecks"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	report, err := h.service.Run(r.Context(), time.Now())
	if err != nil {
		log.Error("failed to run inactivity checks", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to run inactivity checks"))
		return
	}

	log.Info("inactivity checks finished",
		slog.Int("candidates", report.CandidatesChecked),
		slog.Int("first_reminders", report.FirstRemindersSent),
		slog.Int("final_reminders", report.FinalRemindersSent),
		slog.Int("archived", report.UsersArchived),
		slog.Int("failures", len(report.Failures)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"report": report,
	}))
}
