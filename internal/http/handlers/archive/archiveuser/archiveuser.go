// Package archiveuser реализует HTTP-обработчик ручной архивации пользователя.
// Обработчик минует классификацию, но проходит тот же протокол переноса,
// что и периодическая задача.
package archiveuser

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/edtechhq/user-lifecycle/internal/http/response"
	"github.com/edtechhq/user-lifecycle/internal/lib/sl"
	"github.com/edtechhq/user-lifecycle/internal/models"
	"github.com/edtechhq/user-lifecycle/internal/storage/repository"
)

// Handler обрабатывает запросы на ручную архивацию пользователя.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики архивации.
type Service interface {
	Archive(ctx context.Context, userUID string) (*models.ArchivedUser, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP обрабатывает HTTP-запрос на ручную архивацию пользователя.
//
// @Summary      Архивировать пользователя вручную
// @Security     BearerAuth
// @Tags         archive
// @Produce      json
// @Param        userId path string true "Идентификатор пользователя"
// @Success      200 {object} response.Response
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /archive/archive-user/{userId} [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.archive.archiveuser"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := chi.URLParam(r, "userId")
	if err := h.validate.Var(userID, "required,uuid"); err != nil {
		log.Error("invalid user id format", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user id"))
		return
	}

	rec, err := h.service.Archive(r.Context(), userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		log.Info("user not found", slog.String("user_uid", userID))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	}
	if err != nil {
		log.Error("failed to archive user", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to archive user"))
		return
	}

	log.Info("user archived", slog.String("user_uid", userID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"archived_user": rec,
	}))
}
