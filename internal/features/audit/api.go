package audit

import (
	"go-hrflow/internal/common/api"
	"go-hrflow/internal/config"
	"go-hrflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuditApi struct {
	controller *AuditController
	config     *config.Config
	isAdmin    middleware.ClaimsPredicate
}

func NewAuditApi(controller *AuditController, config *config.Config, isAdmin middleware.ClaimsPredicate) api.Route {
	return &AuditApi{
		controller: controller,
		config:     config,
		isAdmin:    isAdmin,
	}
}

func (h *AuditApi) Setup(app *fiber.App) {
	audit := app.Group("/api/audit-logs", middleware.AuthMiddleware(h.config.SkipAuth))

	audit.Get("/", middleware.AdminMiddleware(h.isAdmin), h.controller.ListLogs)
}
