package api

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/edtechhq/user-lifecycle/internal/http/handlers/archive/archivedlist"
	"github.com/edtechhq/user-lifecycle/internal/http/handlers/archive/archivedread"
	"github.com/edtechhq/user-lifecycle/internal/http/handlers/archive/archiveuser"
	"github.com/edtechhq/user-lifecycle/internal/http/handlers/archive/inactivelist"
	"github.com/edtechhq/user-lifecycle/internal/http/handlers/archive/processinactive"
	"github.com/edtechhq/user-lifecycle/internal/http/handlers/archive/runchecks"
	"github.com/edtechhq/user-lifecycle/internal/http/middlewarectx"
	"github.com/edtechhq/user-lifecycle/internal/lib/jwt"
	"github.com/edtechhq/user-lifecycle/internal/services/archival"
	"github.com/edtechhq/user-lifecycle/internal/services/inactivity"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, jwtMaker jwt.Maker, engine *archival.Engine, job *inactivity.Job) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/archive", func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.AdminOnlyMiddleware(logger))
			r.Use(middlewarectx.RateLimitMiddleware(1, 3, logger))

			r.Get("/archived", archivedlist.New(logger, engine).ServeHTTP)
			r.Get("/archived/{userId}", archivedread.New(logger, engine).ServeHTTP)
			r.Post("/archive-user/{userId}", archiveuser.New(logger, engine).ServeHTTP)
			r.Get("/inactive-users", inactivelist.New(logger, job).ServeHTTP)
			r.Post("/process-inactive", processinactive.New(logger, job).ServeHTTP)
			r.Post("/run-checks", runchecks.New(logger, job).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
