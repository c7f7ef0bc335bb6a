// internal/app/features/messages/routes.go
package messages

import "github.com/go-chi/chi/v5"

// Mount attaches the message endpoints to a router already scoped to a
// single group ({groupID} is bound by the caller's route).
func Mount(r chi.Router, h *Handler) {
	r.Get("/messages", h.History)
	r.Post("/messages", h.Send)
	r.Get("/messages/stream", h.Stream)
	r.Post("/files", h.Upload)
}
