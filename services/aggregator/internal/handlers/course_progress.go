package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/learning-platform/internal/platform/api"
	"github.com/example/learning-platform/internal/platform/auth"
	"github.com/example/learning-platform/internal/platform/httpserver"
	"github.com/example/learning-platform/services/aggregator/internal/rollup"
)

type progressResponse struct {
	Result rollup.CourseProgress `json:"result"`
}

// CourseProgress serves read access to course rollups.
type CourseProgress struct {
	Store rollup.Store
	Log   *zap.Logger
	Now   func() time.Time
}

// Routes mounts the endpoints under r. Callers add auth.RequireUser first.
func (h *CourseProgress) Routes(r chi.Router) {
	r.Get("/v1/users/{user_id}/courses/{course_id}/batches/{batch_id}/progress", h.Get)
	r.With(auth.RequireAdmin).Post("/v1/admin/users/{user_id}/courses/{course_id}/batches/{batch_id}/recompute", h.Recompute)
}

// Get handles GET /v1/users/{user_id}/courses/{course_id}/batches/{batch_id}/progress
func (h *CourseProgress) Get(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	if uid, ok := auth.UserIDFromContext(r.Context()); !ok || uid == "" {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
		return
	}

	key, ok := courseKey(w, r, rid)
	if !ok {
		return
	}
	if !auth.CanActFor(r.Context(), key.UserID) {
		api.Forbidden(w, "FORBIDDEN", "cannot access another user's course progress", rid)
		return
	}

	cp, err := h.Store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, rollup.ErrNotFound) {
			api.NotFound(w, "NOT_FOUND", "course progress not found", rid)
			return
		}
		h.logger().Error("course progress lookup failed", zap.String("user_id", key.UserID), zap.String("course_id", key.CourseID), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.WriteJSON(w, http.StatusOK, progressResponse{Result: cp})
}

// Recompute handles POST /v1/admin/users/{user_id}/courses/{course_id}/batches/{batch_id}/recompute
func (h *CourseProgress) Recompute(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	key, ok := courseKey(w, r, rid)
	if !ok {
		return
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	cp, err := h.Store.Recompute(r.Context(), key, now().UTC())
	if err != nil {
		h.logger().Error("course progress recompute failed", zap.String("user_id", key.UserID), zap.String("course_id", key.CourseID), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	h.logger().Info("course progress recomputed", zap.String("user_id", key.UserID), zap.String("course_id", key.CourseID), zap.String("batch_id", key.BatchID))
	api.WriteJSON(w, http.StatusOK, progressResponse{Result: cp})
}

func courseKey(w http.ResponseWriter, r *http.Request, rid string) (rollup.CourseKey, bool) {
	key := rollup.CourseKey{
		UserID:   strings.TrimSpace(chi.URLParam(r, "user_id")),
		CourseID: strings.TrimSpace(chi.URLParam(r, "course_id")),
		BatchID:  strings.TrimSpace(chi.URLParam(r, "batch_id")),
	}
	if key.UserID == "" || key.CourseID == "" || key.BatchID == "" {
		api.BadRequest(w, "MISSING_ID", "user_id, course_id and batch_id are required", rid, nil)
		return rollup.CourseKey{}, false
	}
	return key, true
}

func (h *CourseProgress) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}
