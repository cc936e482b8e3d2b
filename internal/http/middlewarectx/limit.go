package middlewarectx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	"github.com/edtechhq/user-lifecycle/internal/http/response"
)

// RateLimitMiddleware ограничивает частоту запросов к администраторскому API.
// Лимитер общий для всех клиентов: запуски проверок и пакетной архивации
// дороги, и частые вызовы не имеют смысла.
func RateLimitMiddleware(rps float64, burst int, log *slog.Logger) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Error("too many requests")
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
