package repositories

import (
	"context"

	"github.com/clipstream/backend/internal/models"
)

// ChannelStats holds the derived relationship counts for a channel, relative to
// the viewer that requested them.
type ChannelStats struct {
	SubscriberCount      int
	ChannelsSubscribedTo int
	ViewerSubscribed     bool
}

// SubscriptionRepository defines data access for subscription edges.
type SubscriptionRepository interface {
	Subscribe(ctx context.Context, sub models.Subscription) error
	Unsubscribe(ctx context.Context, subscriberID, channelID string) error
	StatsForChannel(ctx context.Context, channelID, viewerID string) (ChannelStats, error)
}
