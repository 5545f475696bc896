package websocket

import (
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients. An optional household_id query
// parameter narrows the events the client receives.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		householdID, _ := strconv.ParseInt(r.URL.Query().Get("household_id"), 10, 64)

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // app clients connect from a local webview origin
		})
		if err != nil {
			hub.logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, householdID)
		client.Run(r.Context())
	}
}
