package handlers

import (
	"net/http"
	"time"

	"github.com/clipstream/backend/internal/models"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// setTokenCookies attaches the token pair as httpOnly, secure cookies.
func setTokenCookies(w http.ResponseWriter, pair models.TokenPair, domain string) {
	http.SetCookie(w, tokenCookie(accessTokenCookie, pair.AccessToken, pair.AccessExpiresAt, domain))
	http.SetCookie(w, tokenCookie(refreshTokenCookie, pair.RefreshToken, pair.RefreshExpiresAt, domain))
}

// clearTokenCookies instructs the client to drop both token cookies.
func clearTokenCookies(w http.ResponseWriter, domain string) {
	expired := time.Unix(0, 0).UTC()
	http.SetCookie(w, tokenCookie(accessTokenCookie, "", expired, domain))
	http.SetCookie(w, tokenCookie(refreshTokenCookie, "", expired, domain))
}

func tokenCookie(name, value string, expires time.Time, domain string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}
