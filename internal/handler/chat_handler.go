package handler

import (
	"os"

	"onbrand-chat-be/internal/pkg/logger"
	"onbrand-chat-be/internal/pkg/serverutils"
	"onbrand-chat-be/internal/service"
	internalWS "onbrand-chat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ChatHandler owns the websocket chat endpoint and the tool catalog route.
type ChatHandler struct {
	hub     *internalWS.Hub
	catalog service.IToolCatalogService
	logger  logger.ILogger
}

func NewChatHandler(hub *internalWS.Hub, catalog service.IToolCatalogService, log logger.ILogger) *ChatHandler {
	return &ChatHandler{
		hub:     hub,
		catalog: catalog,
		logger:  log,
	}
}

// ServeWs upgrades the connection and hands it to a chat session.
func (h *ChatHandler) ServeWs(c *fiber.Ctx) error {
	// Browsers cannot set headers on websocket handshakes, so the token may
	// arrive as a query param instead of an Authorization header.
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		h.logger.Warn("ChatHandler", "Invalid Token in WS Handshake", map[string]interface{}{"error": err})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}

	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing user_id"})
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID format in token"})
	}

	userName, _ := claims["name"].(string)
	userEmail, _ := claims["email"].(string)

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("ChatHandler", "Starting chat session", map[string]interface{}{"user_id": userID})
			internalWS.ServeWs(h.hub, conn, userID, userName, userEmail)
			h.logger.Info("ChatHandler", "Chat session ended", map[string]interface{}{"user_id": userID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// ListTools returns the configured tool servers a turn may use.
func (h *ChatHandler) ListTools(c *fiber.Ctx) error {
	tools, err := h.catalog.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(serverutils.SuccessResponse("Success list tool servers", tools))
}

func (h *ChatHandler) RegisterRoutes(router fiber.Router) {
	chat := router.Group("/chat/v1")
	chat.Get("/tools", serverutils.JwtMiddleware, h.ListTools)

	// WebSocket (token via query param; see ServeWs)
	router.Get("/ws/chat", h.ServeWs)
}
