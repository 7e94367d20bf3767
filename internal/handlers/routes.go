package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	account := AccountHandler{
		Users:        deps.Users,
		Sessions:     deps.Sessions,
		Assets:       deps.Assets,
		LoginLimiter: deps.LoginLimiter,
		CookieDomain: deps.CookieDomain,
	}
	channel := ChannelHandler{Users: deps.Users, Subscriptions: deps.Subscriptions}
	history := HistoryHandler{Videos: deps.Videos}

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return RequireAuth(deps.Sessions, deps.Users, next)
	}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/users/register", account.Register)
	mux.HandleFunc("/api/v1/users/login", account.Login)
	mux.HandleFunc("/api/v1/users/refresh-token", account.Refresh)
	mux.HandleFunc("/api/v1/users/logout", authed(account.Logout))
	mux.HandleFunc("/api/v1/users/change-password", authed(account.ChangePassword))
	mux.HandleFunc("/api/v1/users/current-user", authed(account.CurrentUser))
	mux.HandleFunc("/api/v1/users/update-account", authed(account.UpdateAccount))
	mux.HandleFunc("/api/v1/users/avatar", authed(account.UpdateAvatar))
	mux.HandleFunc("/api/v1/users/cover-image", authed(account.UpdateCoverImage))
	mux.HandleFunc("/api/v1/users/c/{username}", authed(channel.Profile))
	mux.HandleFunc("/api/v1/users/c/{username}/subscribe", authed(channel.ToggleSubscription))
	mux.HandleFunc("/api/v1/users/history", authed(history.Handle))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	Subscriptions SubscriptionStore
	Videos        VideoStore
	Assets        AssetStorage
	LoginLimiter  RateLimiter
	CookieDomain  string
}
