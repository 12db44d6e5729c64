package realtime

import (
	"go-hrflow/internal/features/approval"
	"go-hrflow/pkg/utils"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

type WebSocketController struct {
	hub    *Hub
	logger *zap.Logger
}

func NewWebSocketController(hub *Hub, logger *zap.Logger) *WebSocketController {
	return &WebSocketController{hub: hub, logger: logger}
}

// HandleWebSocket streams the caller's events until the connection closes.
// Inbound frames are read only to detect the close.
func (h *WebSocketController) HandleWebSocket(c *websocket.Conn) {
	claims, ok := c.Locals(claimsLocal).(*utils.UserClaims)
	if !ok {
		c.Close()
		return
	}

	client := h.hub.Register(claims.UserID, approval.IsAdminClaims(claims))
	done := make(chan struct{})

	go func() {
		defer close(done)
		for frame := range client.Messages() {
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Debug("Websocket write failed", zap.String("client_id", client.ID), zap.Error(err))
				return
			}
		}
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}

	h.hub.Unregister(client)
	<-done
}
