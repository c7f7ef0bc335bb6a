// internal/app/features/groups/routes.go
package groups

import (
	"net/http"

	messagesfeature "github.com/dalemusser/studyhub/internal/app/features/messages"

	"github.com/go-chi/chi/v5"
)

// Routes returns the subrouter for everything under /api/groups,
// including the per-group message endpoints. joinGuard throttles join
// attempts so join codes cannot be enumerated.
func Routes(h *Handler, mh *messagesfeature.Handler, joinGuard func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/stream", h.Stream)
	r.With(joinGuard).Post("/join", h.Join)

	r.Route("/{groupID}", func(r chi.Router) {
		r.Delete("/", h.Delete)
		r.Post("/leave", h.Leave)
		r.Get("/members", h.Members)
		messagesfeature.Mount(r, mh)
	})

	return r
}
