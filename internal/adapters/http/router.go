package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/orbitacademy/subscription-service/internal/application"
)

// Handler is the HTTP adapter entrypoint for subscription use-cases.
// Keeping only the application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
}

// NewHandler constructs an HTTP handler bound to the application service.
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// NewRouter registers the HTTP routes and middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	// The provider posts raw signed payloads here; no auth middleware, the
	// signature is the authentication.
	r.Post("/events", handler.providerEvents)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", handler.checkout)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Get("/subscription", handler.getSubscription)
			r.Post("/subscription/cancel", handler.cancelSubscription)
			r.Patch("/admin/subscription", handler.adminUpdateSubscription)
		})
	})

	return r
}
