package chat

import (
	"log/slog"
	"net/http"

	"streamhub/internal/auth"
	"streamhub/internal/store"

	ws "github.com/coder/websocket"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients. A channel token may be supplied via
// the "token" query parameter; connections without one are anonymous and
// receive-only.
func HandleWebSocket(hub *Hub, issuer *auth.TokenIssuer, messages *store.MessageStore, mentions *Mentions, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var claims *auth.ChannelClaims
		if token := r.URL.Query().Get("token"); token != "" {
			verified, err := issuer.Verify(token)
			if err != nil {
				logger.Warn("rejecting channel token", "error", err)
				http.Error(w, "invalid channel token", http.StatusUnauthorized)
				return
			}
			claims = verified
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // Origin is checked by the fronting proxy
		})
		if err != nil {
			logger.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, claims, messages, mentions, logger)
		client.Run(r.Context())
	}
}
