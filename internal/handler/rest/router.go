package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
)

// Handlers groups everything mounted on the public router.
type Handlers struct {
	fx.In

	Info    *InfoHandler
	Webhook *WebhookHandler
	API     *APIHandler
	Feed    http.Handler `name:"feed"`
}

// NewRouter builds the route table:
//
//	GET  /                          service info
//	*    /ce/{namespace}/           webhook ingestion (POST, OPTIONS)
//	GET  /api/{namespace}           webhook URL discovery
//	GET  /api/{namespace}/events    retained history
//	GET  /api/{namespace}/feed      live WebSocket feed
func NewRouter(h Handlers, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		TraceIDMiddleware,
		middleware.Recoverer,
		LoggingMiddleware(logger),
	)

	r.Get("/", h.Info.ServeHTTP)

	r.Handle("/ce/{namespace}", h.Webhook)
	r.Handle("/ce/{namespace}/", h.Webhook)

	r.Route("/api", func(r chi.Router) {
		r.Use(CORSMiddleware())

		r.Get("/{namespace}", h.API.About)
		r.Get("/{namespace}/events", h.API.Events)
		r.Get("/{namespace}/feed", h.Feed.ServeHTTP)
	})

	return r
}
