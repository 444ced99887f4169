package api

import (
	"context"
	"log/slog"
	"net/http"

	"wschat/internal/logging"
	"wschat/internal/server"

	"github.com/dmitrymomot/foundation/core/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	chat      *server.Server
	upgrader  websocket.Upgrader
	readLimit int64
	log       *slog.Logger
}

func NewWebSocketHandler(chat *server.Server, readLimit int64, log *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		chat: chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		readLimit: readLimit,
		log:       log,
	}
}

// @Summary WebSocket connection endpoint
// @Description Upgrade HTTP connection to WebSocket. The first text frame is the username.
// @Tags websocket
// @Success 101 {string} string "Switching Protocols"
// @Failure 400 {string} string "Bad Request"
// @Router /ws [get]
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.log.Debug("websocket upgrade failed", logger.Error(err), logging.RemoteAddr(c.Request.RemoteAddr))
		return
	}
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	// Sessions are stopped by Server.Shutdown, not by the request.
	h.chat.Serve(context.WithoutCancel(c.Request.Context()), conn, c.Request.RemoteAddr)
}

// @Summary Get online users
// @Description List the usernames of all active chat sessions
// @Tags websocket
// @Produce json
// @Success 200 {object} OnlineResponse
// @Router /api/online [get]
func (h *WebSocketHandler) GetConnectionInfo(c *gin.Context) {
	users := h.chat.Online()
	c.JSON(http.StatusOK, OnlineResponse{
		Count: len(users),
		Users: users,
	})
}

type OnlineResponse struct {
	Count int      `json:"count" example:"2"`
	Users []string `json:"users" example:"alice,carol"`
}
