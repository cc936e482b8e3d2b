package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/edtechhq/user-lifecycle/internal/http/response"
)

// AdminOnlyMiddleware пропускает запрос дальше только при роли admin в контексте.
// Должен стоять после JWTMiddleware, который кладёт роль в контекст.
func AdminOnlyMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.AdminOnlyMiddleware"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			role, ok := r.Context().Value(Role).(string)
			if !ok || role == "" {
				log.Error("role not found in context")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("unauthorized"))
				return
			}
			if role != "admin" {
				log.Error("access denied", slog.String("role", role))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
