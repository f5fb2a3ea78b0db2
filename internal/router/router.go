package router

import (
	"net/http"

	"Mansoor88-6/session-replay/internal/handler"
	"Mansoor88-6/session-replay/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Options struct {
	Metrics *metrics.Metrics
	// Tracing wraps the router with otelhttp spans named after ServiceName
	Tracing     bool
	ServiceName string
}

// New builds the collection server's HTTP surface. jira may be nil.
func New(events *handler.SessionEventHandler, jira *handler.JiraHandler, opts Options, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if opts.Metrics != nil {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Write([]byte(opts.Metrics.String()))
		})
	}

	r.Route("/events", func(r chi.Router) {
		r.Post("/events", events.SaveEvents)
		r.Post("/events/batch", events.SaveMultiple)
		r.Get("/events", events.GetEventsByTimeRange)
		r.Get("/events/{id}", events.GetEventByID)
		r.Delete("/events/{id}", events.DeleteEventByID)

		r.Get("/sessions/{sessionId}/events", events.GetEventsBySession)
		r.Delete("/sessions/{sessionId}/events", events.DeleteEventsBySession)
		r.Get("/sessions/{sessionId}/export", events.ExportSession)
	})

	if jira != nil {
		r.Get("/jira/project-list", jira.GetProjectList)
	}

	var h http.Handler = cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Session-Id"},
		AllowCredentials: true,
	}).Handler(r)

	if opts.Tracing {
		name := opts.ServiceName
		if name == "" {
			name = "replay-server"
		}
		h = otelhttp.NewHandler(h, name)
	}
	return h
}
