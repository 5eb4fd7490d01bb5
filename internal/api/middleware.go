package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/terra-clan/pylearn-arcade/internal/metrics"
	"github.com/terra-clan/pylearn-arcade/internal/models"
)

// SessionCookie is the name of the site login cookie forwarded to the reward
// service.
const SessionCookie = "session"

// SessionTokenHeader carries the token returned when a session was created.
// Sessions started anonymously can only be reached with it.
const SessionTokenHeader = "X-Session-Token"

// identify attaches the calling player to the request context. Credentials
// are never checked here: the reward service decides whether they are valid,
// and requests without any are played anonymously.
func identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		player := playerFromRequest(r)
		if !player.Anonymous() {
			slog.Debug("identified player", "player_id", player.ID, "token_prefix", player.MaskedToken())
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPlayer(r.Context(), player)))
	})
}

// playerFromRequest extracts credentials from the Authorization header and
// the login cookie
func playerFromRequest(r *http.Request) *models.Player {
	var bearer string
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		bearer = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}

	var cookie string
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		cookie = c.Name + "=" + c.Value
	}

	return &models.Player{
		ID:           models.PlayerID(bearer, cookie),
		BearerToken:  bearer,
		Cookie:       cookie,
		SessionToken: strings.TrimSpace(r.Header.Get(SessionTokenHeader)),
	}
}

// metricsMiddleware records request counts and latency per route pattern
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.ObserveSince(metrics.HTTPDuration.WithLabelValues(r.Method, route), start)
	})
}
