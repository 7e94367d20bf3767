package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// ChannelHandler serves channel profile aggregation and subscription endpoints.
type ChannelHandler struct {
	Users         UserStore
	Subscriptions SubscriptionStore
}

// Profile handles GET /api/v1/users/c/{username} requests. The username lookup
// is case-insensitive; the returned projection carries relationship counts
// relative to the authenticated viewer.
func (h ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, span := logging.StartSpan(r.Context(), "channel.profile")
	defer span.End()
	logger := logging.FromContext(ctx)

	viewer, ok := UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		respondError(ctx, w, http.StatusBadRequest, "username is missing")
		return
	}

	channel, err := h.Users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("channel lookup missed", "username", username)
			respondError(ctx, w, http.StatusNotFound, "channel does not exist")
			return
		}
		logger.Error("channel lookup failed", "username", username, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to fetch channel")
		return
	}

	stats, err := h.Subscriptions.StatsForChannel(ctx, channel.ID, viewer.ID)
	if err != nil {
		logger.Error("channel stats query failed", "channelId", channel.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to fetch channel")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "channel profile fetched", models.ChannelProfile{
		FullName:             channel.FullName,
		Username:             channel.Username,
		Email:                channel.Email,
		SubscriberCount:      stats.SubscriberCount,
		ChannelsSubscribedTo: stats.ChannelsSubscribedTo,
		IsSubscribed:         stats.ViewerSubscribed,
	})
}

// ToggleSubscription handles POST /api/v1/users/c/{username}/subscribe requests.
// A first call subscribes the viewer to the channel, a second call removes the
// edge again. Duplicate edges are impossible: the store enforces uniqueness.
func (h ChannelHandler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	viewer, ok := UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		respondError(ctx, w, http.StatusBadRequest, "username is missing")
		return
	}

	channel, err := h.Users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "channel does not exist")
			return
		}
		logger.Error("channel lookup failed", "username", username, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to fetch channel")
		return
	}

	if channel.ID == viewer.ID {
		respondError(ctx, w, http.StatusBadRequest, "cannot subscribe to your own channel")
		return
	}

	err = h.Subscriptions.Subscribe(ctx, models.Subscription{
		ID:           uuid.NewString(),
		SubscriberID: viewer.ID,
		ChannelID:    channel.ID,
		CreatedAt:    time.Now().UTC(),
	})
	switch {
	case err == nil:
		respondJSON(ctx, w, http.StatusOK, "subscribed", map[string]bool{"subscribed": true})
	case errors.Is(err, repositories.ErrConflict):
		if err := h.Subscriptions.Unsubscribe(ctx, viewer.ID, channel.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("unsubscribe failed", "channelId", channel.ID, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "unable to update subscription")
			return
		}
		respondJSON(ctx, w, http.StatusOK, "unsubscribed", map[string]bool{"subscribed": false})
	default:
		logger.Error("subscribe failed", "channelId", channel.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to update subscription")
	}
}
