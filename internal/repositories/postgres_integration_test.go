package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clipstream/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "alice", "alice@example.com")

	dupEmail := user
	dupEmail.ID = uuid.NewString()
	dupEmail.Username = "someoneelse"
	if err := repo.Create(ctx, dupEmail); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict creating duplicate email, got %v", err)
	}

	dupUsername := user
	dupUsername.ID = uuid.NewString()
	dupUsername.Email = "other@example.com"
	if err := repo.Create(ctx, dupUsername); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict creating duplicate username, got %v", err)
	}

	fetched, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if fetched.ID != user.ID || fetched.Password != user.Password {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	// Username lookup is case-insensitive.
	fetched, err = repo.FindByUsername(ctx, "ALICE")
	if err != nil {
		t.Fatalf("find by username: %v", err)
	}
	if fetched.ID != user.ID {
		t.Fatalf("unexpected user for username lookup: %+v", fetched)
	}

	if _, err := repo.FindByUsername(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown username, got %v", err)
	}
}

func TestPostgresUserRepository_RefreshTokenSlot(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "bob", "bob@example.com")

	if err := repo.SaveRefreshToken(ctx, user.ID, "token-one"); err != nil {
		t.Fatalf("save refresh token: %v", err)
	}

	fetched, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if fetched.RefreshToken != "token-one" {
		t.Fatalf("expected token-one stored, got %q", fetched.RefreshToken)
	}

	// A second save overwrites the slot; there is only ever one active token.
	if err := repo.SaveRefreshToken(ctx, user.ID, "token-two"); err != nil {
		t.Fatalf("overwrite refresh token: %v", err)
	}
	fetched, _ = repo.FindByID(ctx, user.ID)
	if fetched.RefreshToken != "token-two" {
		t.Fatalf("expected token-two stored, got %q", fetched.RefreshToken)
	}

	if err := repo.SaveRefreshToken(ctx, user.ID, ""); err != nil {
		t.Fatalf("clear refresh token: %v", err)
	}
	fetched, _ = repo.FindByID(ctx, user.ID)
	if fetched.RefreshToken != "" {
		t.Fatalf("expected cleared slot, got %q", fetched.RefreshToken)
	}

	if err := repo.SaveRefreshToken(ctx, uuid.NewString(), "token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestPostgresUserRepository_UpdateProfileAndPassword(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "carol", "carol@example.com")
	other := createTestUser(t, repo, "dave", "dave@example.com")

	updated, err := repo.UpdateProfile(ctx, user.ID, ProfileUpdate{FullName: "Carol Updated"})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.FullName != "Carol Updated" {
		t.Fatalf("expected new full name, got %q", updated.FullName)
	}
	if updated.Email != user.Email || updated.Username != user.Username {
		t.Fatalf("expected untouched fields to persist, got %+v", updated)
	}

	if _, err := repo.UpdateProfile(ctx, user.ID, ProfileUpdate{Email: other.Email}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict taking another user's email, got %v", err)
	}

	if _, err := repo.UpdateProfile(ctx, uuid.NewString(), ProfileUpdate{FullName: "Ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}

	if err := repo.UpdatePassword(ctx, user.ID, "new-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	fetched, _ := repo.FindByID(ctx, user.ID)
	if fetched.Password != "new-hash" {
		t.Fatalf("expected rotated password hash, got %q", fetched.Password)
	}
}

func TestPostgresSubscriptionRepository_StatsAndUniqueness(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	channel := createTestUser(t, userRepo, "channel", "channel@example.com")
	fan1 := createTestUser(t, userRepo, "fan1", "fan1@example.com")
	fan2 := createTestUser(t, userRepo, "fan2", "fan2@example.com")
	idol := createTestUser(t, userRepo, "idol", "idol@example.com")

	repo := NewPostgresSubscriptionRepository(testPool)

	for _, fan := range []models.User{fan1, fan2} {
		if err := repo.Subscribe(ctx, testSubscription(fan.ID, channel.ID)); err != nil {
			t.Fatalf("subscribe %s: %v", fan.Username, err)
		}
	}
	if err := repo.Subscribe(ctx, testSubscription(channel.ID, idol.ID)); err != nil {
		t.Fatalf("subscribe channel to idol: %v", err)
	}

	if err := repo.Subscribe(ctx, testSubscription(fan1.ID, channel.ID)); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate edge, got %v", err)
	}

	stats, err := repo.StatsForChannel(ctx, channel.ID, fan1.ID)
	if err != nil {
		t.Fatalf("stats for channel: %v", err)
	}
	if stats.SubscriberCount != 2 {
		t.Fatalf("expected 2 subscribers, got %d", stats.SubscriberCount)
	}
	if stats.ChannelsSubscribedTo != 1 {
		t.Fatalf("expected 1 subscribed-to channel, got %d", stats.ChannelsSubscribedTo)
	}
	if !stats.ViewerSubscribed {
		t.Fatal("expected fan1 to be reported as subscribed")
	}

	stats, err = repo.StatsForChannel(ctx, channel.ID, idol.ID)
	if err != nil {
		t.Fatalf("stats for non-subscriber viewer: %v", err)
	}
	if stats.ViewerSubscribed {
		t.Fatal("expected idol to be reported as not subscribed")
	}

	if err := repo.Unsubscribe(ctx, fan1.ID, channel.ID); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if err := repo.Unsubscribe(ctx, fan1.ID, channel.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound unsubscribing twice, got %v", err)
	}

	stats, _ = repo.StatsForChannel(ctx, channel.ID, fan1.ID)
	if stats.SubscriberCount != 1 || stats.ViewerSubscribed {
		t.Fatalf("expected edge removal to be reflected, got %+v", stats)
	}

	if err := repo.Subscribe(ctx, testSubscription(uuid.NewString(), channel.ID)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown subscriber, got %v", err)
	}
}

func TestPostgresVideoRepository_WatchHistoryOrder(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	watcher := createTestUser(t, userRepo, "watcher", "watcher@example.com")
	owner := createTestUser(t, userRepo, "owner", "owner@example.com")

	repo := NewPostgresVideoRepository(testPool)

	var videoIDs []string
	for i := 0; i < 3; i++ {
		video := models.Video{
			ID:          uuid.NewString(),
			OwnerID:     owner.ID,
			VideoFile:   fmt.Sprintf("https://cdn.example.com/videos/%d.mp4", i),
			Thumbnail:   fmt.Sprintf("https://cdn.example.com/thumbs/%d.png", i),
			Title:       fmt.Sprintf("Video %d", i),
			Duration:    42.5,
			IsPublished: true,
			CreatedAt:   time.Now().UTC(),
		}
		if err := repo.Create(ctx, video); err != nil {
			t.Fatalf("create video %d: %v", i, err)
		}
		videoIDs = append(videoIDs, video.ID)
	}

	// Append out of creation order to prove position, not insert time, rules.
	watched := []string{videoIDs[2], videoIDs[0], videoIDs[1]}
	for _, id := range watched {
		if err := repo.AppendWatchHistory(ctx, watcher.ID, id); err != nil {
			t.Fatalf("append watch history %s: %v", id, err)
		}
	}

	history, err := repo.WatchHistory(ctx, watcher.ID)
	if err != nil {
		t.Fatalf("watch history: %v", err)
	}

	if len(history) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(history))
	}

	for i, entry := range history {
		if entry.ID != watched[i] {
			t.Fatalf("expected history order %v, got entry %d = %s", watched, i, entry.ID)
		}
		if entry.Owner.Username != "owner" || entry.Owner.Email != owner.Email || entry.Owner.FullName != owner.FullName {
			t.Fatalf("expected owner sub-record to be embedded, got %+v", entry.Owner)
		}
	}

	other, err := repo.WatchHistory(ctx, owner.ID)
	if err != nil {
		t.Fatalf("watch history for fresh user: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(other))
	}

	if err := repo.AppendWatchHistory(ctx, watcher.ID, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown video, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE watch_history, subscriptions, videos, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, username, email string) models.User {
	t.Helper()
	now := time.Now().UTC()
	user := models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		FullName:  "Test " + username,
		Password:  "password-hash",
		Avatar:    "https://cdn.example.com/avatars/" + username + ".png",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user %s: %v", username, err)
	}
	return user
}

func testSubscription(subscriberID, channelID string) models.Subscription {
	return models.Subscription{
		ID:           uuid.NewString(),
		SubscriberID: subscriberID,
		ChannelID:    channelID,
		CreatedAt:    time.Now().UTC(),
	}
}
