package profile

import (
	"go-hrflow/internal/common/api"
	"go-hrflow/internal/config"
	"go-hrflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ProfileApi struct {
	controller *ProfileController
	config     *config.Config
	isAdmin    middleware.ClaimsPredicate
}

func NewProfileApi(controller *ProfileController, config *config.Config, isAdmin middleware.ClaimsPredicate) api.Route {
	return &ProfileApi{
		controller: controller,
		config:     config,
		isAdmin:    isAdmin,
	}
}

func (h *ProfileApi) Setup(app *fiber.App) {
	profiles := app.Group("/api/profiles", middleware.AuthMiddleware(h.config.SkipAuth))

	profiles.Get("/me", h.controller.GetMine)
	profiles.Get("/:employeeId", middleware.AdminMiddleware(h.isAdmin), h.controller.Get)
	profiles.Put("/:employeeId", middleware.AdminMiddleware(h.isAdmin), h.controller.Upsert)
}
