package handler

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/pkg/serverutils"
	"kb-assistant-be/internal/service"
	internalWS "kb-assistant-be/internal/websocket"
	"kb-assistant-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// ChatSocketHandler serves the websocket transport. Frames from the user are resolved like typed messages and the
// answers come back through the delivery bus and the hub.
type ChatSocketHandler struct {
	ctx       context.Context
	chat      service.IChatService
	hub       *internalWS.Hub
	jwtSecret string
	logger    logger.ILogger
}

// NewChatSocketHandler registers itself as the hub's inbound callback. ctx bounds every resolution it starts.
func NewChatSocketHandler(ctx context.Context, chat service.IChatService, hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *ChatSocketHandler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	h := &ChatSocketHandler{
		ctx:       ctx,
		chat:      chat,
		hub:       hub,
		jwtSecret: jwtSecret,
		logger:    log,
	}
	hub.OnInbound(h.HandleFrame)
	return h
}

// RegisterRoutes mounts the socket outside /chat/v1, whose header auth browsers cannot satisfy on a handshake.
func (h *ChatSocketHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws/chat/v1", h.ServeWs)
}

// ServeWs handles websocket requests from the peer.
func (h *ChatSocketHandler) ServeWs(c *fiber.Ctx) error {
	userID, err := h.authenticate(c)
	if err != nil {
		h.logger.Warn("ChatSocket", "Rejected websocket handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, err.Error()))
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("ChatSocket", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
			internalWS.ServeWs(h.hub, conn, userID)
			h.logger.Info("ChatSocket", "WebSocket session ended", map[string]interface{}{"user_id": userID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// authenticate reads the token from the "token" query parameter (browsers cannot set headers on the handshake)
// or the Authorization header. Without a secret the user id is taken as given.
func (h *ChatSocketHandler) authenticate(c *fiber.Ctx) (string, error) {
	if h.jwtSecret == "" {
		userID := strings.TrimSpace(c.Query("user_id", c.Get(serverutils.DevUserHeader)))
		if userID == "" {
			return "", fiber.NewError(fiber.StatusUnauthorized, "Missing user_id")
		}
		return userID, nil
	}

	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Missing token")
	}

	userID, err := serverutils.ParseUserToken(h.jwtSecret, tokenStr)
	if err != nil {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}
	return userID, nil
}

// HandleFrame runs on the connection's read loop, so resolution happens on its own goroutine.
func (h *ChatSocketHandler) HandleFrame(userID string, data []byte) {
	var req dto.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil || strings.TrimSpace(req.Text) == "" {
		h.logger.Warn("ChatSocket", "Ignoring malformed frame", map[string]interface{}{"user_id": userID})
		return
	}

	go func() {
		_, err := h.chat.HandleText(h.ctx, store.NewRequest(req.MessageId, userID, store.ChannelText, req.Text, time.Now()))
		if err != nil {
			// Governor refusals were already delivered as an apology.
			h.logger.Warn("ChatSocket", "Frame not answered", map[string]interface{}{
				"user_id": userID,
				"error":   err,
			})
		}
	}()
}
