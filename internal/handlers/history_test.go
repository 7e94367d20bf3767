package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

type memVideoStore struct {
	mu      sync.Mutex
	videos  map[string]models.Video
	owners  map[string]models.VideoOwner
	watched map[string][]string
}

func newMemVideoStore() *memVideoStore {
	return &memVideoStore{
		videos:  make(map[string]models.Video),
		owners:  make(map[string]models.VideoOwner),
		watched: make(map[string][]string),
	}
}

func (s *memVideoStore) add(video models.Video, owner models.VideoOwner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[video.ID] = video
	s.owners[video.ID] = owner
}

func (s *memVideoStore) WatchHistory(_ context.Context, userID string) ([]models.HistoryVideo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var history []models.HistoryVideo
	for _, videoID := range s.watched[userID] {
		history = append(history, models.HistoryVideo{
			Video: s.videos[videoID],
			Owner: s.owners[videoID],
		})
	}
	return history, nil
}

func (s *memVideoStore) AppendWatchHistory(_ context.Context, userID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[videoID]; !ok {
		return repositories.ErrNotFound
	}
	s.watched[userID] = append(s.watched[userID], videoID)
	return nil
}

func historyFixture() (*memVideoStore, models.User) {
	store := newMemVideoStore()
	owner := models.VideoOwner{FullName: "Creator", Email: "creator@example.com", Username: "creator"}
	store.add(models.Video{ID: "video-1", OwnerID: "channel-1", Title: "First"}, owner)
	store.add(models.Video{ID: "video-2", OwnerID: "channel-1", Title: "Second"}, owner)
	store.add(models.Video{ID: "video-3", OwnerID: "channel-1", Title: "Third"}, owner)
	viewer := models.User{ID: "viewer-1", Username: "viewer", Email: "viewer@example.com"}
	return store, viewer
}

func recordWatch(t *testing.T, handler HistoryHandler, viewer models.User, videoID string) *httptest.ResponseRecorder {
	t.Helper()
	payload, _ := json.Marshal(recordHistoryRequest{VideoID: videoID})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/history", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.Handle(rec, authedRequest(req, viewer))
	return rec
}

func TestHistoryHandlerWatchOrder(t *testing.T) {
	store, viewer := historyFixture()
	handler := HistoryHandler{Videos: store}

	for _, videoID := range []string{"video-2", "video-1", "video-3"} {
		if rec := recordWatch(t, handler, viewer, videoID); rec.Code != http.StatusOK {
			t.Fatalf("record %s: status %d body %s", videoID, rec.Code, rec.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/history", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, authedRequest(req, viewer))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var history []models.HistoryVideo
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}

	if len(history) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(history))
	}
	for i, wantID := range []string{"video-2", "video-1", "video-3"} {
		if history[i].ID != wantID {
			t.Fatalf("entry %d: expected %s got %s", i, wantID, history[i].ID)
		}
	}
	if history[0].Owner.Username != "creator" || history[0].Owner.FullName != "Creator" {
		t.Fatalf("expected owner details to be embedded, got %+v", history[0].Owner)
	}
}

func TestHistoryHandlerEmptyHistory(t *testing.T) {
	store, viewer := historyFixture()
	handler := HistoryHandler{Videos: store}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/history", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, authedRequest(req, viewer))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	// An empty history is an empty array, never null.
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"data":[]`)) {
		t.Fatalf("expected empty array payload, got %s", rec.Body.String())
	}
}

func TestHistoryHandlerRecordValidation(t *testing.T) {
	store, viewer := historyFixture()
	handler := HistoryHandler{Videos: store}

	t.Run("missing videoId", func(t *testing.T) {
		if rec := recordWatch(t, handler, viewer, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("unknown video", func(t *testing.T) {
		rec := recordWatch(t, handler, viewer, "video-missing")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
		}
		if env := decodeEnvelope(t, rec); env.Message != "video does not exist" {
			t.Fatalf("unexpected message %q", env.Message)
		}
	})
}

func TestHistoryHandlerRequiresAuth(t *testing.T) {
	store, _ := historyFixture()
	handler := HistoryHandler{Videos: store}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/history", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestHistoryHandlerMethodNotAllowed(t *testing.T) {
	store, viewer := historyFixture()
	handler := HistoryHandler{Videos: store}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/users/history", nil)
	rec := httptest.NewRecorder()
	handler.Handle(rec, authedRequest(req, viewer))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
