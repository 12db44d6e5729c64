package system

import (
	"context"
	"time"

	"go-hrflow/internal/common/api"
	"go-hrflow/internal/database"

	"github.com/gofiber/fiber/v2"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type mongoPinger struct {
	db *database.MongodbDB
}

func (p mongoPinger) Ping(ctx context.Context) error {
	return p.db.DB.Client().Ping(ctx, nil)
}

type HealthApi struct {
	pinger Pinger
}

func NewHealthApi(mongodb *database.MongodbDB) api.Route {
	return &HealthApi{pinger: mongoPinger{db: mongodb}}
}

func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/health", h.Health)
}

// Health godoc
// @Summary      Liveness and database reachability
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /health [get]
func (h *HealthApi) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":   "degraded",
			"database": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok", "database": "ok"})
}
