package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Yehonatan-Bar/ear-fish/internal/config"
	"github.com/Yehonatan-Bar/ear-fish/internal/hub"
	"github.com/Yehonatan-Bar/ear-fish/internal/service"
	"github.com/Yehonatan-Bar/ear-fish/internal/translator"
	"github.com/Yehonatan-Bar/ear-fish/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades chat connections and runs their pumps.
type WSHandler struct {
	chat  *service.ChatService
	wsCfg config.WebSocketConfig
}

// NewWSHandler creates the WebSocket handler.
func NewWSHandler(chat *service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{chat: chat, wsCfg: wsCfg}
}

// RegisterRoutes registers the chat endpoint.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws/:room_id", h.HandleWebSocket)
}

// HandleWebSocket accepts a connection into a room. Identity comes
// from query parameters, every one of them optional.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	roomID := c.Param("room_id")
	clientID := c.Query("client_id")
	if clientID == "" {
		clientID = uuid.New().String()
	}
	language := c.Query("language")
	if language == "" {
		language = translator.DefaultLanguage
	}
	username := c.Query("username")
	if username == "" {
		username = defaultUsername(clientID)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(clientID, roomID, language, username, h.wsCfg.SendBuffer)
	session := hub.NewSession(client, conn, h.wsCfg)

	// The request context dies with the handler; connection work runs
	// on its own.
	ctx := context.Background()
	h.chat.Connect(ctx, client)

	go session.WritePump()
	go session.ReadPump(
		func(payload []byte) {
			h.chat.HandleInbound(ctx, client, payload)
		},
		func() {
			h.chat.Disconnect(ctx, roomID, clientID)
		},
	)
}

func defaultUsername(clientID string) string {
	if len(clientID) > 8 {
		clientID = clientID[:8]
	}
	return "User_" + clientID
}
