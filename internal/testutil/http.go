// internal/testutil/http.go
package testutil

import (
	"context"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/identity"
	"github.com/dalemusser/studyhub/internal/domain/models"

	"github.com/go-chi/chi/v5"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// WithIdentity attaches an authenticated user to the request, the way the
// identity middleware would after verifying a bearer token.
func WithIdentity(r *http.Request, u models.User) *http.Request {
	return r.WithContext(identity.WithUser(r.Context(), u))
}
