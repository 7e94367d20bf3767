package app

import (
	"context"
	"fmt"
	"time"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/config"
	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/handlers"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/repositories"
	"github.com/clipstream/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	users := repositories.NewPostgresUserRepository(pool)

	assets, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure asset storage: %w", err)
	}

	sessions := auth.NewManager(
		cfg.AccessTokenSecret,
		cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		users,
	)

	loginLimiter := middleware.NewKeyRateLimiter(middleware.LimiterConfig{
		Requests: cfg.LoginRateLimit,
		Window:   cfg.LoginRateWindow,
		Burst:    cfg.LoginRateBurst,
		TTL:      10 * time.Minute,
	})

	return handlers.Dependencies{
		Users:         users,
		Sessions:      sessions,
		Subscriptions: repositories.NewPostgresSubscriptionRepository(pool),
		Videos:        repositories.NewPostgresVideoRepository(pool),
		Assets:        assets,
		LoginLimiter:  loginLimiter,
		CookieDomain:  cfg.CookieDomain,
	}, nil
}
