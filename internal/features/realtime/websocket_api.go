package realtime

import (
	"go-hrflow/internal/common/api"
	"go-hrflow/internal/config"
	"go-hrflow/pkg/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

// claimsLocal is a plain string key: websocket.Conn only copies string-keyed locals
const claimsLocal = "ws_claims"

type WebSocketApi struct {
	Controller *WebSocketController
	config     *config.Config
}

func NewWebSocketApi(controller *WebSocketController, config *config.Config) api.Route {
	return &WebSocketApi{
		Controller: controller,
		config:     config,
	}
}

func (h *WebSocketApi) Setup(app *fiber.App) {
	app.Use("/api/ws", h.upgrade)
	app.Get("/api/ws", websocket.New(h.Controller.HandleWebSocket))
}

// upgrade authenticates the handshake; browsers cannot set headers on websocket
// requests, so the token travels in the query string
func (h *WebSocketApi) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	if h.config.SkipAuth {
		c.Locals(claimsLocal, &utils.UserClaims{
			UserID: fiberutils.CopyString(c.Query("login", "dev-admin")),
			Roles:  []string{fiberutils.CopyString(c.Query("role", "admin"))},
		})
		return c.Next()
	}

	claims, err := utils.ValidateToken(c.Query("token"))
	if err != nil || claims.UserID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	c.Locals(claimsLocal, claims)
	return c.Next()
}
