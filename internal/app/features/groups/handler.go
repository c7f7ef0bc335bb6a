// internal/app/features/groups/handler.go
package groups

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dalemusser/studyhub/internal/app/features/shared"
	"github.com/dalemusser/studyhub/internal/app/identity"
	"github.com/dalemusser/studyhub/internal/app/membership"
	"github.com/dalemusser/studyhub/internal/app/realtime"
	"github.com/dalemusser/studyhub/internal/app/system/timeouts"
	"github.com/dalemusser/studyhub/internal/domain/models"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the group lifecycle API: create, join by code, leave,
// delete, and the caller's live group list.
type Handler struct {
	Engine *membership.Engine
	Feed   *realtime.GroupFeed
	Log    *zap.Logger
}

func NewHandler(engine *membership.Engine, feed *realtime.GroupFeed, logger *zap.Logger) *Handler {
	return &Handler{Engine: engine, Feed: feed, Log: logger}
}

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
	IsPrivate   bool   `json:"is_private"`
	MaxMembers  int    `json:"max_members"`
}

type createResponse struct {
	GroupID string `json:"group_id"`
	Code    string `json:"code"`
}

// Create handles POST /api/groups.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		shared.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req createRequest
	if !shared.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Engine.CreateGroup(ctx, membership.CreateGroupInput{
		Name:         req.Name,
		Description:  req.Description,
		Subject:      req.Subject,
		IsPrivate:    req.IsPrivate,
		MaxMembers:   req.MaxMembers,
		CreatorID:    user.ID,
		CreatorName:  user.FullName,
		CreatorEmail: user.Email,
	})
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusCreated, createResponse{
		GroupID: res.GroupID.Hex(),
		Code:    res.Code,
	})
}

type joinRequest struct {
	Code string `json:"code"`
}

type joinResponse struct {
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
}

// Join handles POST /api/groups/join.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		shared.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req joinRequest
	if !shared.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Engine.JoinGroupByCode(ctx, membership.JoinInput{
		Code:      req.Code,
		UserID:    user.ID,
		UserName:  user.FullName,
		UserEmail: user.Email,
	})
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, joinResponse{
		GroupID:   res.GroupID.Hex(),
		GroupName: res.GroupName,
	})
}

// List handles GET /api/groups: a one-shot snapshot of the caller's
// groups, most recently active first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		shared.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	groups, err := h.Feed.FetchOnce(ctx, user.ID)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string][]models.Group{"groups": groups})
}

// Leave handles POST /api/groups/{groupID}/leave.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		shared.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		shared.JSON(w, http.StatusBadRequest, map[string]string{"error": "malformed group id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Engine.LeaveGroup(ctx, groupID, user.ID); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/groups/{groupID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		shared.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		shared.JSON(w, http.StatusBadRequest, map[string]string{"error": "malformed group id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Engine.DeleteGroup(ctx, groupID, user.ID); err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Members handles GET /api/groups/{groupID}/members.
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		shared.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		shared.JSON(w, http.StatusBadRequest, map[string]string{"error": "malformed group id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	members, err := h.Engine.Members(ctx, groupID, user.ID)
	if err != nil {
		shared.Error(w, h.Log, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string][]models.GroupMember{"members": members})
}

// Stream handles GET /api/groups/stream: a server-sent-events feed of the
// caller's group list, re-sent in full whenever any of their groups
// changes. Each event's data line is the same JSON the List endpoint
// returns.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		shared.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.JSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	updates := make(chan []models.Group, 1)
	errs := make(chan error, 1)
	sub, err := h.Feed.Subscribe(r.Context(), user.ID,
		func(gs []models.Group) { replaceLatest(updates, gs) },
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
			h.Log.Warn("group stream interrupted",
				zap.String("user_id", user.ID.Hex()),
				zap.Error(err))
			if _, werr := w.Write([]byte("event: error\ndata: {\"error\":\"stream interrupted\"}\n\n")); werr == nil {
				flusher.Flush()
			}
			return
		case gs := <-updates:
			body, err := json.Marshal(map[string][]models.Group{"groups": gs})
			if err != nil {
				body = []byte(`{"groups":[]}`)
			}
			if _, err := w.Write([]byte("event: groups\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(append(body, '\n', '\n')); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// replaceLatest keeps only the newest snapshot in the channel. The feed
// always sends complete snapshots, so intermediate ones can be skipped
// when the HTTP writer is slower than the change stream.
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
