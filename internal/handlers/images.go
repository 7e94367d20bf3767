package handlers

import (
	"net/http"

	"github.com/clipstream/backend/internal/logging"
)

// UpdateAvatar handles PATCH /api/v1/users/avatar requests.
func (h AccountHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", "avatars")
}

// UpdateCoverImage handles PATCH /api/v1/users/cover-image requests.
func (h AccountHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", "covers")
}

func (h AccountHandler) updateImage(w http.ResponseWriter, r *http.Request, field, prefix string) {
	if r.Method != http.MethodPatch {
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

	if h.Assets == nil {
		logger.Error("asset storage unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "upload services unavailable")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("invalid image upload form", "field", field, "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		logger.Warn("image file missing", "field", field, "error", err)
		respondError(ctx, w, http.StatusBadRequest, field+" file is required")
		return
	}
	defer file.Close()

	location, err := h.Assets.Save(ctx, imageKey(prefix, user.ID, header.Filename), file)
	if err != nil {
		logger.Error("image upload failed", "field", field, "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store "+field)
		return
	}

	var updated = user
	if field == "avatar" {
		updated, err = h.Users.UpdateAvatar(ctx, user.ID, location)
	} else {
		updated, err = h.Users.UpdateCoverImage(ctx, user.ID, location)
	}
	if err != nil {
		logger.Error("image reference update failed", "field", field, "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update "+field)
		return
	}

	respondJSON(ctx, w, http.StatusOK, field+" updated successfully", updated)
}
