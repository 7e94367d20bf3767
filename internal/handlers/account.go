package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

const (
	minPasswordLength = 8
	maxUploadBytes    = 32 << 20
)

// AccountHandler implements registration, authentication, and account endpoints.
type AccountHandler struct {
	Users        UserStore
	Sessions     SessionManager
	Assets       AssetStorage
	LoginLimiter RateLimiter
	CookieDomain string
	NowFunc      func() time.Time
}

// Register handles POST /api/v1/users/register requests. The body is a
// multipart form carrying the account fields plus a required avatar image and
// an optional cover image.
func (h AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Assets == nil {
		logger.Error("registration dependencies unavailable", "hasUsers", h.Users != nil, "hasAssets", h.Assets != nil)
		respondError(ctx, w, http.StatusInternalServerError, "registration services unavailable")
		return
	}

	if !allowRequest(h.LoginLimiter, r, "register") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many registration attempts")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("invalid registration form", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	fullName := strings.TrimSpace(r.FormValue("fullName"))
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	username := strings.TrimSpace(strings.ToLower(r.FormValue("username")))
	password := r.FormValue("password")

	if fullName == "" || email == "" || username == "" || password == "" {
		logger.Warn("registration missing fields", "email", email, "username", username)
		respondError(ctx, w, http.StatusBadRequest, "all fields are required")
		return
	}

	if _, err := mail.ParseAddress(email); err != nil {
		logger.Warn("registration invalid email", "email", email, "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}

	if len(password) < minPasswordLength {
		logger.Warn("registration password too short", "email", email)
		respondError(ctx, w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		return
	}

	if taken, err := h.identityTaken(r, email, username); err != nil {
		logger.Error("registration lookup failed", "error", err, "email", email)
		respondError(ctx, w, http.StatusInternalServerError, "unable to verify existing accounts")
		return
	} else if taken {
		logger.Warn("registration conflict", "email", email, "username", username)
		respondError(ctx, w, http.StatusConflict, "user with email or username already exists")
		return
	}

	avatarFile, avatarHeader, err := r.FormFile("avatar")
	if err != nil {
		logger.Warn("registration missing avatar", "email", email, "error", err)
		respondError(ctx, w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer avatarFile.Close()

	userID := uuid.NewString()

	avatarURL, err := h.Assets.Save(ctx, imageKey("avatars", userID, avatarHeader.Filename), avatarFile)
	if err != nil {
		logger.Error("registration avatar upload failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store avatar image")
		return
	}

	coverURL := ""
	if coverFile, coverHeader, err := r.FormFile("coverImage"); err == nil {
		defer coverFile.Close()
		coverURL, err = h.Assets.Save(ctx, imageKey("covers", userID, coverHeader.Filename), coverFile)
		if err != nil {
			logger.Error("registration cover upload failed", "error", err, "userId", userID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to store cover image")
			return
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("registration failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:         userID,
		Username:   username,
		Email:      email,
		FullName:   fullName,
		Password:   string(hashed),
		Avatar:     avatarURL,
		CoverImage: coverURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("registration conflict on insert", "email", email, "username", username)
			respondError(ctx, w, http.StatusConflict, "user with email or username already exists")
			return
		}
		logger.Error("registration failed to create user", "error", err, "email", email)
		respondError(ctx, w, http.StatusInternalServerError, "failed to register user")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, "user registered successfully", user)
}

// Login handles POST /api/v1/users/login requests. Either email or username
// identifies the account; a successful login sets both token cookies and
// overwrites the account's stored refresh token.
func (h AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
		respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	if !allowRequest(h.LoginLimiter, r, "login") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	if req.Email == "" && req.Username == "" {
		logger.Warn("login missing identifier")
		respondError(ctx, w, http.StatusBadRequest, "username or email is required")
		return
	}
	if req.Password == "" {
		respondError(ctx, w, http.StatusBadRequest, "password is required")
		return
	}

	user, err := h.findAccount(r, req.Email, req.Username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("login unknown account", "email", req.Email, "username", req.Username)
			respondError(ctx, w, http.StatusNotFound, "user does not exist")
			return
		}
		logger.Error("login user lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to verify credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("failed to issue tokens", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	setTokenCookies(w, tokens, h.CookieDomain)
	respondJSON(ctx, w, http.StatusOK, "user logged in successfully", loginResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

// Logout handles POST /api/v1/users/logout requests. It clears the stored
// refresh-token slot and both cookies; logging out twice is harmless.
func (h AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
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

	if err := h.Sessions.Revoke(ctx, user.ID); err != nil {
		logger.Error("logout failed to clear refresh token", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to log out")
		return
	}

	clearTokenCookies(w, h.CookieDomain)
	respondJSON(ctx, w, http.StatusOK, "user logged out", map[string]string{})
}

// Refresh handles POST /api/v1/users/refresh-token requests. The incoming
// refresh token is read from the refreshToken cookie or the request body and
// exchanged for a fresh pair; the presented token is superseded either way.
func (h AccountHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "session service unavailable")
		return
	}

	incoming := ""
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		incoming = cookie.Value
	}
	if incoming == "" {
		var req refreshRequest
		if err := decodeJSON(r, &req); err == nil {
			incoming = strings.TrimSpace(req.RefreshToken)
		}
	}

	tokens, err := h.Sessions.Rotate(ctx, incoming)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenRequired):
			logger.Warn("refresh without token")
			respondError(ctx, w, http.StatusUnauthorized, "invalid access token")
		case errors.Is(err, auth.ErrTokenInvalid):
			logger.Warn("refresh token failed verification", "error", err)
			respondError(ctx, w, http.StatusBadRequest, "invalid refresh token", err.Error())
		case errors.Is(err, auth.ErrTokenMismatch):
			logger.Warn("refresh token mismatch")
			respondError(ctx, w, http.StatusUnauthorized, "refresh token is invalid or has been superseded")
		default:
			logger.Error("refresh failed", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "unable to refresh session")
		}
		return
	}

	setTokenCookies(w, tokens, h.CookieDomain)
	respondJSON(ctx, w, http.StatusOK, "access token refreshed", models.TokenPair{
		AccessToken:      tokens.AccessToken,
		AccessExpiresAt:  tokens.AccessExpiresAt,
		RefreshToken:     tokens.RefreshToken,
		RefreshExpiresAt: tokens.RefreshExpiresAt,
	})
}

// ChangePassword handles POST /api/v1/users/change-password requests.
func (h AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
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

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid change-password payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OldPassword == "" || req.NewPassword == "" {
		respondError(ctx, w, http.StatusBadRequest, "old and new passwords are required")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		logger.Warn("change-password old password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "invalid old password")
		return
	}

	if len(req.NewPassword) < minPasswordLength {
		respondError(ctx, w, http.StatusBadRequest, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("change-password failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	if err := h.Users.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		logger.Error("change-password persistence failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to change password")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "password changed successfully", map[string]string{})
}

// CurrentUser handles GET /api/v1/users/current-user requests.
func (h AccountHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	user, ok := UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	respondJSON(ctx, w, http.StatusOK, "current user fetched", user)
}

// UpdateAccount handles PATCH /api/v1/users/update-account requests. At least
// one of fullName, email, or username must be provided; omitted fields keep
// their current value.
func (h AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
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

	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid update-account payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(strings.ToLower(req.Username))

	if req.FullName == "" && req.Email == "" && req.Username == "" {
		respondError(ctx, w, http.StatusBadRequest, "at least one field is required")
		return
	}

	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			logger.Warn("update-account invalid email", "email", req.Email, "error", err)
			respondError(ctx, w, http.StatusBadRequest, "invalid email address")
			return
		}
	}

	updated, err := h.Users.UpdateProfile(ctx, user.ID, repositories.ProfileUpdate{
		FullName: req.FullName,
		Email:    req.Email,
		Username: req.Username,
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			logger.Warn("update-account conflict", "userId", user.ID)
			respondError(ctx, w, http.StatusConflict, "email or username already in use")
		case errors.Is(err, repositories.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "user does not exist")
		default:
			logger.Error("update-account persistence failed", "error", err, "userId", user.ID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to update account")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, "account details updated successfully", updated)
}

func (h AccountHandler) identityTaken(r *http.Request, email, username string) (bool, error) {
	ctx := r.Context()

	if _, err := h.Users.FindByEmail(ctx, email); err == nil {
		return true, nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return false, err
	}

	if _, err := h.Users.FindByUsername(ctx, username); err == nil {
		return true, nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return false, err
	}

	return false, nil
}

func (h AccountHandler) findAccount(r *http.Request, email, username string) (models.User, error) {
	if email != "" {
		return h.Users.FindByEmail(r.Context(), email)
	}
	return h.Users.FindByUsername(r.Context(), username)
}

func (h AccountHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func imageKey(prefix, userID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%s%s", prefix, userID, ext)
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Username string `json:"username"`
}
