package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/models"
)

type ctxKey string

const ctxUserKey ctxKey = "authenticated_user"

// RequireAuth gates a handler behind access-token verification. The token is
// read from the accessToken cookie or an Authorization bearer header; on
// success the full user record is loaded and stored on the request context.
func RequireAuth(sessions SessionManager, users UserStore, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := bearerToken(r)
		if token == "" {
			respondError(ctx, w, http.StatusUnauthorized, "unauthorized request")
			return
		}

		claims, err := sessions.VerifyAccess(token)
		if err != nil {
			logging.FromContext(ctx).Warn("access token rejected", "error", err)
			respondError(ctx, w, http.StatusUnauthorized, "invalid access token")
			return
		}

		user, err := users.FindByID(ctx, claims.UserID)
		if err != nil {
			logging.FromContext(ctx).Warn("token subject lookup failed", "userId", claims.UserID, "error", err)
			respondError(ctx, w, http.StatusUnauthorized, "invalid access token")
			return
		}

		ctx = logging.WithUserID(ctx, user.ID)
		next(w, r.WithContext(context.WithValue(ctx, ctxUserKey, user)))
	}
}

// UserFromContext returns the authenticated user stored by RequireAuth.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(ctxUserKey).(models.User)
	return user, ok
}

func bearerToken(r *http.Request) string {
	if cookie, err := r.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authz := r.Header.Get("Authorization")
	if authz == "" {
		return ""
	}
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
