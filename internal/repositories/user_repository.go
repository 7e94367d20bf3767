package repositories

import (
	"context"

	"github.com/clipstream/backend/internal/models"
)

// ProfileUpdate carries a partial account update. Empty fields are left unchanged.
type ProfileUpdate struct {
	FullName string
	Email    string
	Username string
}

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	SaveRefreshToken(ctx context.Context, userID, token string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (models.User, error)
	UpdateAvatar(ctx context.Context, userID, avatarURL string) (models.User, error)
	UpdateCoverImage(ctx context.Context, userID, coverURL string) (models.User, error)
}
