package repositories

import (
	"context"

	"github.com/clipstream/backend/internal/models"
)

// VideoRepository defines persistence for videos and watch history.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	AppendWatchHistory(ctx context.Context, userID, videoID string) error
	WatchHistory(ctx context.Context, userID string) ([]models.HistoryVideo, error)
}
