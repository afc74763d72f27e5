package http

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/medrevise/medrevise/internal/auth"
	"github.com/medrevise/medrevise/internal/logger"
	"github.com/medrevise/medrevise/internal/ws"
)

// Auth happens in middleware before the upgrade; origin is not checked
// here.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// EventsHandler upgrades the connection and registers it with the hub. The
// client never sends application data; the read loop only notices the
// close.
func EventsHandler(hub *ws.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, ok := auth.SubjectFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", 401)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Debugf("ws upgrade %s: %v", sub, err)
			return
		}
		hub.Add(sub, conn)
		go func() {
			defer hub.Remove(sub, conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
