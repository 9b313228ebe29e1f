package sync

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades the request and keeps the client registered until it
// disconnects.
func WSHandler(hub *Hub) gin.HandlerFunc {
	log := hub.logger.With(zap.String("transport", transportWebsocket))

	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug("upgrade failed", zap.Error(err))
			return
		}

		_ = ws.WriteMessage(websocket.TextMessage, hub.welcome(transportWebsocket))
		hub.AddWS(ws)
		log.Info("client connected", zap.String("remote", c.ClientIP()))

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		log.Info("client disconnected", zap.String("remote", c.ClientIP()))
	}
}
