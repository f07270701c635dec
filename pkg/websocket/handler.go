package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/movemobility/dispatch/pkg/logger"
	"github.com/movemobility/dispatch/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks are enforced at the gateway
		return true
	},
}

// HandleWebSocket upgrades an authenticated request to a WebSocket
// connection and attaches it to the hub. Authentication runs in the
// middleware chain before this handler.
func HandleWebSocket(c *gin.Context, hub *Hub) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	role := "rider"
	if got, exists := c.Get("user_role"); exists {
		if r, ok := got.(middleware.Role); ok && r == middleware.RoleDriver {
			role = "driver"
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(userID.String(), conn, hub, role)
	hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
