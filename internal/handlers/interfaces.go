package handlers

import (
	"context"
	"io"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the account handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateProfile(ctx context.Context, userID string, update repositories.ProfileUpdate) (models.User, error)
	UpdateAvatar(ctx context.Context, userID, avatarURL string) (models.User, error)
	UpdateCoverImage(ctx context.Context, userID, coverURL string) (models.User, error)
}

// SessionManager issues, rotates, and verifies authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.TokenPair, error)
	Rotate(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Revoke(ctx context.Context, userID string) error
	VerifyAccess(token string) (auth.Claims, error)
}

// SubscriptionStore captures operations required by the channel handlers.
type SubscriptionStore interface {
	Subscribe(ctx context.Context, sub models.Subscription) error
	Unsubscribe(ctx context.Context, subscriberID, channelID string) error
	StatsForChannel(ctx context.Context, channelID, viewerID string) (repositories.ChannelStats, error)
}

// VideoStore captures persistence for watch-history workflows.
type VideoStore interface {
	WatchHistory(ctx context.Context, userID string) ([]models.HistoryVideo, error)
	AppendWatchHistory(ctx context.Context, userID, videoID string) error
}

// AssetStorage persists uploaded image files and returns their public location.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}
