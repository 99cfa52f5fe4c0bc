package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/internal/observability"
	"engdocs-qa-platform/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Cross-origin policy is enforced by the CORS layer; the upgrade
	// itself accepts any origin that made it this far.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsReadTimeout = 10 * time.Minute

// SetupStreamRoutes exposes the live event feed over websocket. Each
// connection receives the projection of every emitted event until it
// drops or fails a write. All writes go through the hub so event frames
// are never interleaved.
func SetupStreamRoutes(router *gin.Engine, hub *observability.Hub, authMiddleware *middleware.AuthMiddleware) {
	events := router.Group("/events")
	events.Use(authMiddleware.RequireAuth(), authMiddleware.RequireAdmin())

	events.GET("/stream", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		unsubscribe := hub.Subscribe(conn)
		defer unsubscribe()

		// The socket is send-only; the read loop exists to notice the
		// client closing. An idle deadline bounds abandoned sockets.
		for {
			conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}
