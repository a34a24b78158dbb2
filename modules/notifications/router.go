package notifications

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/hrnotify/pkg/httpserver"
	"github.com/dmitrymomot/hrnotify/pkg/requestid"
)

type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures the admin router. API is required; readiness
// checks are optional.
type RouterOptions struct {
	API             Mountable
	ReadinessChecks []httpserver.Check
	Logger          *slog.Logger
}

// Router builds the admin HTTP API:
//
//	r := notifications.Router(notifications.RouterOptions{
//		API: notifications.NewAPI(svc, handler.NewErrorHandler(log, notifications.ClassifyError)),
//		ReadinessChecks: []httpserver.Check{{Name: "postgres", Fn: pool.Ping}},
//		Logger: log,
//	})
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.Recoverer)

	r.Route("/health", func(h chi.Router) {
		h.Get("/live", httpserver.LivenessHandler())
		h.Get("/ready", httpserver.ReadinessHandler(opts.Logger, opts.ReadinessChecks...))
	})

	if opts.API != nil {
		r.Mount("/", opts.API.Handle())
	}

	return r
}
