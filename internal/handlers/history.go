package handlers

import (
	"errors"
	"net/http"

	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// HistoryHandler serves the watch-history aggregation endpoint.
type HistoryHandler struct {
	Videos VideoStore
}

// Handle dispatches /api/v1/users/history by method.
func (h HistoryHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.WatchHistory(w, r)
	case http.MethodPost:
		h.Record(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// WatchHistory handles GET /api/v1/users/history requests. Entries come back
// in watch order, each with the owning channel's public details embedded.
func (h HistoryHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, span := logging.StartSpan(r.Context(), "history.watch")
	defer span.End()
	logger := logging.FromContext(ctx)

	user, ok := UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	history, err := h.Videos.WatchHistory(ctx, user.ID)
	if err != nil {
		logger.Error("watch history query failed", "userId", user.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to fetch watch history")
		return
	}

	if history == nil {
		history = []models.HistoryVideo{}
	}

	respondJSON(ctx, w, http.StatusOK, "watch history fetched", history)
}

// Record handles POST /api/v1/users/history requests, appending a watched
// video to the end of the user's history list.
func (h HistoryHandler) Record(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	user, ok := UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var req recordHistoryRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid history payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.VideoID == "" {
		respondError(ctx, w, http.StatusBadRequest, "videoId is required")
		return
	}

	if err := h.Videos.AppendWatchHistory(ctx, user.ID, req.VideoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video does not exist")
			return
		}
		logger.Error("append watch history failed", "userId", user.ID, "videoId", req.VideoID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to record watch history")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "watch history recorded", map[string]string{"videoId": req.VideoID})
}

type recordHistoryRequest struct {
	VideoID string `json:"videoId"`
}
