// internal/app/features/messages/handler.go
package messages

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/studyhub/internal/app/chat"
	"github.com/dalemusser/studyhub/internal/app/features/shared"
	"github.com/dalemusser/studyhub/internal/app/identity"
	"github.com/dalemusser/studyhub/internal/app/media"
	"github.com/dalemusser/studyhub/internal/app/realtime"
	groupstore "github.com/dalemusser/studyhub/internal/app/store/groups"
	"github.com/dalemusser/studyhub/internal/app/system/limits"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the per-group message API: history, sends, file uploads
// and the live SSE feed. History, sends and the stream all require the
// caller to be a member of the group.
type Handler struct {
	Chat   *chat.Service
	Feed   *realtime.MessageFeed
	Media  *media.Store
	Groups *groupstore.Store
	Log    *zap.Logger
}

func NewHandler(chatSvc *chat.Service, feed *realtime.MessageFeed, mediaStore *media.Store, groups *groupstore.Store, logger *zap.Logger) *Handler {
	return &Handler{Chat: chatSvc, Feed: feed, Media: mediaStore, Groups: groups, Log: logger}
}

// caller extracts the authenticated user and the groupID path parameter,
// and verifies membership. It writes the error response itself on failure.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (models.User, primitive.ObjectID, bool) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		shared.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return models.User{}, primitive.NilObjectID, false
	}
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		shared.JSON(w, http.StatusBadRequest, map[string]string{"error": "malformed group id"})
		return models.User{}, primitive.NilObjectID, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	g, err := h.Groups.GetByID(ctx, groupID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		shared.Error(w, h.Log, chat.ErrGroupNotFound)
		return models.User{}, primitive.NilObjectID, false
	}
	if err != nil {
		shared.Error(w, h.Log, err)
		return models.User{}, primitive.NilObjectID, false
	}
	if !g.HasMember(user.ID) {
		shared.Error(w, h.Log, chat.ErrNotMember)
		return models.User{}, primitive.NilObjectID, false
	}
	return user, groupID, true
}

// History handles GET /api/groups/{groupID}/messages.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	_, groupID, ok := h.caller(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	msgs, err := h.Feed.FetchOnce(ctx, groupID)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string][]models.Message{"messages": msgs})
}

type sendRequest struct {
	Type        string    `json:"type"` // "text" (default) or "meeting"
	Text        string    `json:"text"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	StartsAt    time.Time `json:"starts_at"`
}

// Send handles POST /api/groups/{groupID}/messages.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	user, groupID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req sendRequest
	if !shared.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		msg models.Message
		err error
	)
	switch req.Type {
	case "meeting":
		msg, err = h.Chat.SendMeeting(ctx, groupID, user.ID, req.Description, req.Link, req.StartsAt)
	case "", "text":
		msg, err = h.Chat.SendText(ctx, groupID, user.ID, req.Text)
	default:
		shared.JSON(w, http.StatusBadRequest, map[string]string{"error": "unknown message type"})
		return
	}
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, msg)
}

// Upload handles POST /api/groups/{groupID}/files: a multipart form with a
// "file" part and an optional "caption" field. The attachment is stored in
// the media bucket and posted into the group chat as an image or pdf
// message.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	user, groupID, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(limits.MaxUploadSize); err != nil {
		shared.JSON(w, http.StatusBadRequest, map[string]string{"error": "malformed multipart body"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		shared.JSON(w, http.StatusBadRequest, map[string]string{"error": "missing file part"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !media.Accepts(contentType) {
		shared.Error(w, h.Log, media.ErrUnsupportedType)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	url, err := h.Media.Upload(ctx, file, header.Size, contentType)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}

	msg, err := h.Chat.SendFile(ctx, groupID, user.ID, url, media.FileTypeFor(contentType), r.FormValue("caption"))
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, msg)
}

// Stream handles GET /api/groups/{groupID}/messages/stream: a
// server-sent-events feed that re-sends the group's full ordered message
// list on every insert.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	user, groupID, ok := h.caller(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.JSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	updates := make(chan []models.Message, 1)
	errs := make(chan error, 1)
	sub, err := h.Feed.Subscribe(r.Context(), groupID, user.ID,
		func(ms []models.Message) { replaceLatest(updates, ms) },
		func(err error) {
			select {
			case errs <- err:
			default:
			}
		})
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case err := <-errs:
			h.Log.Warn("message stream interrupted",
				zap.String("group_id", groupID.Hex()),
				zap.Error(err))
			if _, werr := w.Write([]byte("event: error\ndata: {\"error\":\"stream interrupted\"}\n\n")); werr == nil {
				flusher.Flush()
			}
			return
		case ms := <-updates:
			body, err := json.Marshal(map[string][]models.Message{"messages": ms})
			if err != nil {
				body = []byte(`{"messages":[]}`)
			}
			if _, err := w.Write([]byte("event: messages\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(append(body, '\n', '\n')); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// replaceLatest keeps only the newest snapshot in the channel; stale
// intermediate snapshots are dropped, never the latest.
func replaceLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
