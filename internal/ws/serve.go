package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"fieldsync/internal/logger"
	"fieldsync/internal/validate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades /ws requests and pumps the connection through h until
// ctx ends. The optional doc query parameter is validated up front.
func (h *Hub) Handler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if doc := r.URL.Query().Get("doc"); doc != "" {
			if err := validate.DocID(doc); err != nil {
				http.Error(w, "invalid doc query parameter: "+err.Error(), http.StatusBadRequest)
				return
			}
			logger.Log.Info("ws_connect", "doc", doc)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Log.Warn("upgrade_failed", "error", err)
			return
		}
		c := h.Register(conn)
		go c.ReadPump(ctx, func(raw []byte) {
			h.Incoming(c.ID, raw)
		}, func() {
			h.Unregister(c)
		})
		go c.WritePump(ctx)
	}
}
