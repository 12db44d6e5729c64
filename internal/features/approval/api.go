package approval

import (
	"go-hrflow/internal/common/api"
	"go-hrflow/internal/config"
	"go-hrflow/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// KindApi mounts the request lifecycle of one kind under /api/<path>
type KindApi struct {
	controller *RequestController
	config     *config.Config
}

func NewKindApi(kind RequestKind, service ApprovalService, config *config.Config) api.Route {
	return &KindApi{
		controller: NewRequestController(kind, service),
		config:     config,
	}
}

func (h *KindApi) Setup(app *fiber.App) {
	requests := app.Group("/api/"+h.controller.Kind.Path(), middleware.AuthMiddleware(h.config.SkipAuth))

	requests.Post("/", h.controller.Create)
	requests.Get("/mine", h.controller.ListMine)
	requests.Get("/admin", h.controller.AdminList)
	requests.Post("/cancel/:id", h.controller.Cancel)
	requests.Patch("/edit/:id", h.controller.Edit)
	requests.Get("/inbox/:role", h.controller.Inbox)
	requests.Post("/decision/:role/:id", h.controller.Decide)
	requests.Get("/:id", h.controller.Get)
}

type ReportApi struct {
	controller *ReportController
	config     *config.Config
}

func NewReportApi(controller *ReportController, config *config.Config) api.Route {
	return &ReportApi{
		controller: controller,
		config:     config,
	}
}

func (h *ReportApi) Setup(app *fiber.App) {
	reports := app.Group("/api/requests", middleware.AuthMiddleware(h.config.SkipAuth))

	reports.Get("/summary", h.controller.Summary)
	reports.Get("/export", h.controller.Export)
}
