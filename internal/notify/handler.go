package notify

import (
	"time"

	"jarcode/internal/user/service"
	"jarcode/pkg/utils/logger"
	"jarcode/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler upgrades authenticated requests to websocket connections joined to
// the caller's notification group.
type Handler struct {
	hub      *Hub
	auth     *service.AuthService
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, auth *service.AuthService) *Handler {
	return &Handler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Serve handles GET /ws/submissions?token=<jwt>. Browsers cannot set headers
// on websocket dials, so the token travels as a query parameter.
func (h *Handler) Serve(c *gin.Context) {
	info, err := h.auth.Authenticate(c.Query("token"))
	if err != nil {
		response.AbortWithError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithContext(c.Request.Context()).Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	messages, unsubscribe := h.hub.Subscribe(info.ID)
	go h.writeLoop(conn, messages)
	go h.readLoop(conn, unsubscribe)
}

func (h *Handler) writeLoop(conn *websocket.Conn, messages <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-messages:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop drains inbound frames so pings are answered, and tears the group
// membership down the moment the peer goes away.
func (h *Handler) readLoop(conn *websocket.Conn, unsubscribe func()) {
	defer unsubscribe()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
