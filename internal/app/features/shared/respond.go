// internal/app/features/shared/respond.go
//
// Package shared holds the JSON plumbing common to the API features:
// response encoding and the mapping from service errors to HTTP status
// codes.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/studyhub/internal/app/chat"
	"github.com/dalemusser/studyhub/internal/app/media"
	"github.com/dalemusser/studyhub/internal/app/membership"

	"go.uber.org/zap"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// Error maps a service error to its HTTP status and writes the JSON error
// body. Unrecognized errors become 500 and are logged; the client only
// sees a generic message.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	JSON(w, status, errorBody{Error: msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, membership.ErrNameRequired),
		errors.Is(err, membership.ErrSubjectRequired),
		errors.Is(err, membership.ErrBadCode),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMessageTooLong),
		errors.Is(err, chat.ErrInvalidMeetingLink),
		errors.Is(err, media.ErrUnsupportedType),
		errors.Is(err, media.ErrTooLarge):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, membership.ErrGroupNotFound),
		errors.Is(err, chat.ErrGroupNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, membership.ErrAlreadyMember),
		errors.Is(err, membership.ErrGroupFull),
		errors.Is(err, membership.ErrSoleAdmin):
		return http.StatusConflict, err.Error()
	case errors.Is(err, membership.ErrNotAdmin):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, membership.ErrNotMember),
		errors.Is(err, chat.ErrNotMember):
		return http.StatusForbidden, err.Error()
	default:
		return http.StatusInternalServerError, ""
	}
}

// Decode reads a JSON request body into v. Malformed bodies get a 400 and
// a false return; the handler should bail out without writing again.
func Decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		JSON(w, http.StatusBadRequest, errorBody{Error: "malformed JSON body"})
		return false
	}
	return true
}
