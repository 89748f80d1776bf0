package ws

import (
	"context"
	"net/http"
	"net/url"

	"github.com/vedran77/activities/internal/logging"
	"github.com/vedran77/activities/internal/service"
	"nhooyr.io/websocket"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	ParseToken(token string) (*service.Identity, error)
}

// ServeWS upgrades to WebSocket. Auth is via ?token= since browsers cannot
// set headers on the upgrade request. ctx bounds the lifetime of every
// connection it accepts.
func ServeWS(ctx context.Context, hub *Hub, tokens TokenParser, comments CommentPoster, allowedOrigins []string) http.HandlerFunc {
	patterns := originPatterns(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		id, err := tokens.ParseToken(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: patterns,
		})
		if err != nil {
			l := logging.Ctx(r.Context())
			l.Warn().Err(err).Msg("ws: accept failed")
			return
		}

		client := NewClient(hub, conn, comments, id.UserID, id.Username)
		select {
		case hub.register <- client:
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		}

		go client.WritePump(ctx)
		go client.ReadPump(ctx)
	}
}

// originPatterns turns configured origins ("http://localhost:3000") into the
// host patterns the websocket library matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
