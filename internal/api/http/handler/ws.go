package handler

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/screenfleet/screenfleet/internal/api/http/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Watch upgrades to a websocket and pushes a full registry snapshot on
// connect, then on every poll cycle and registry mutation, until the client
// disconnects.
// GET /api/ws
func (h *FleetHandler) Watch(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Debug("Websocket upgrade failed", "error", err, "client_ip", c.ClientIP())
		return
	}
	defer conn.Close()

	snapshots, cancel := h.broadcaster.Subscribe()
	defer cancel()

	if err := conn.WriteJSON(dto.SnapshotEvent{
		Event:  dto.SnapshotEventName,
		Agents: h.registry.Snapshot(),
	}); err != nil {
		return
	}

	// Drain reads so the close handshake surfaces a disconnect.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			if err := conn.WriteJSON(dto.SnapshotEvent{
				Event:  dto.SnapshotEventName,
				Agents: snapshot,
			}); err != nil {
				return
			}
		case <-disconnected:
			return
		}
	}
}

func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
