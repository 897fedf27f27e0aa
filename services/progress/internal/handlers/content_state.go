package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/learning-platform/internal/platform/api"
	"github.com/example/learning-platform/internal/platform/auth"
	"github.com/example/learning-platform/internal/platform/httpserver"
	"github.com/example/learning-platform/services/progress/internal/learnerstate"
	"github.com/example/learning-platform/services/progress/internal/reconcile"
	"github.com/example/learning-platform/services/progress/internal/request"
)

const maxBodyBytes = 1 << 20

type updateResponse struct {
	Result reconcile.Digest `json:"result"`
}

type stateResponse struct {
	Result learnerstate.Record `json:"result"`
}

// ContentState serves the content-state endpoints.
type ContentState struct {
	Reconciler *reconcile.Reconciler
	Log        *zap.Logger
}

// Routes mounts the endpoints under r. Callers add auth.RequireUser first.
func (h *ContentState) Routes(r chi.Router) {
	r.Patch("/v1/users/{user_id}/content-state", h.Update)
	r.Get("/v1/users/{user_id}/content-state/{content_id}", h.Get)
}

// Update handles PATCH /v1/users/{user_id}/content-state
func (h *ContentState) Update(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	userID, ok := h.authorize(w, r, rid)
	if !ok {
		return
	}

	var env request.Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&env); err != nil {
		api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
		return
	}
	reports, err := env.Request.Reports(userID)
	if err != nil {
		var verr *request.ValidationError
		if errors.As(err, &verr) {
			api.BadRequest(w, "INVALID_REQUEST", "invalid content state", rid, map[string]any{"fields": verr.Fields})
			return
		}
		api.BadRequest(w, "INVALID_REQUEST", err.Error(), rid, nil)
		return
	}

	h.Reconciler.Reconcile(r.Context(), userID, reports, func(d reconcile.Digest) {
		api.WriteJSON(w, http.StatusOK, updateResponse{Result: d})
	})
}

// Get handles GET /v1/users/{user_id}/content-state/{content_id}?courseId=&batchId=
func (h *ContentState) Get(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	userID, ok := h.authorize(w, r, rid)
	if !ok {
		return
	}
	contentID := strings.TrimSpace(chi.URLParam(r, "content_id"))
	if contentID == "" {
		api.BadRequest(w, "MISSING_ID", "content_id is required", rid, nil)
		return
	}
	q := r.URL.Query()

	rec, found, err := h.Reconciler.Lookup(r.Context(), userID, contentID, q.Get("courseId"), q.Get("batchId"))
	if err != nil {
		h.logger().Error("content state lookup failed", zap.String("user_id", userID), zap.String("content_id", contentID), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	if !found {
		api.NotFound(w, "NOT_FOUND", "content state not found", rid)
		return
	}
	api.WriteJSON(w, http.StatusOK, stateResponse{Result: rec})
}

func (h *ContentState) authorize(w http.ResponseWriter, r *http.Request, rid string) (string, bool) {
	if uid, ok := auth.UserIDFromContext(r.Context()); !ok || uid == "" {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
		return "", false
	}
	userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
	if userID == "" {
		api.BadRequest(w, "MISSING_ID", "user_id is required", rid, nil)
		return "", false
	}
	if !auth.CanActFor(r.Context(), userID) {
		api.Forbidden(w, "FORBIDDEN", "cannot access another user's content state", rid)
		return "", false
	}
	return userID, true
}

func (h *ContentState) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
