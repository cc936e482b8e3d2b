// Package archivedread реализует HTTP-обработчик для получения архивной
// записи конкретного пользователя по его исходному идентификатору.
package archivedread

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

// Handler обрабатывает запросы на чтение архивной записи по ID пользователя.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики чтения архивной записи.
type Service interface {
	GetArchived(ctx context.Context, originalID string) (*models.ArchivedUser, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP обрабатывает HTTP-запрос на чтение архивной записи.
//
// @Summary      Архивная запись пользователя
// @Security     BearerAuth
// @Tags         archive
// @Produce      json
// @Param        userId path string true "Исходный идентификатор пользователя"
// @Success      200 {object} response.Response
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Router       /archive/archived/{userId} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.archive.archivedread"

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

	res, err := h.service.GetArchived(r.Context(), userID)
	if errors.Is(err, repository.ErrArchivedUserNotFound) {
		log.Info("archived user not found", slog.String("user_uid", userID))
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("archived user not found"))
		return
	}
	if err != nil {
		log.Error("failed to read archived user", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to read archived user"))
		return
	}

	log.Info("read archived user", slog.String("user_uid", userID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"archived_user": res,
	}))
}
