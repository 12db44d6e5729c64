package approval

import (
	"fmt"
	"strconv"

	"go-hrflow/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// RequestController serves the request lifecycle of one RequestKind
type RequestController struct {
	Kind    RequestKind
	Service ApprovalService
}

func NewRequestController(kind RequestKind, service ApprovalService) *RequestController {
	return &RequestController{Kind: kind, Service: service}
}

type DecisionInput struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

func actorOf(ctx *fiber.Ctx) Actor {
	claims, _ := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	return ActorFromClaims(claims)
}

func fail(ctx *fiber.Ctx, err error) error {
	return ctx.Status(HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
}

func stageParam(ctx *fiber.Ctx) (Role, error) {
	stage, ok := ParseRole(ctx.Params("role"))
	if !ok {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, ctx.Params("role"))
	}
	return stage, nil
}

// Create godoc
// @Summary Submit a request
// @Tags requests
// @Accept json
// @Produce json
// @Param kind path string true "leave, forget-scan or swap-day"
// @Param body body map[string]interface{} true "Subject fields"
// @Success 201 {object} Request
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string "Already submitted"
// @Router /api/{kind} [post]
func (c *RequestController) Create(ctx *fiber.Ctx) error {
	var fields map[string]any
	if err := ctx.BodyParser(&fields); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req, err := c.Service.Create(ctx.UserContext(), c.Kind, actorOf(ctx), fields)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(req)
}

// ListMine godoc
// @Summary List the caller's own requests, newest first
// @Tags requests
// @Produce json
// @Param kind path string true "leave, forget-scan or swap-day"
// @Success 200 {array} Request
// @Router /api/{kind}/mine [get]
func (c *RequestController) ListMine(ctx *fiber.Ctx) error {
	requests, err := c.Service.ListMine(ctx.UserContext(), c.Kind, actorOf(ctx))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(requests)
}

// Get godoc
// @Summary Get one request
// @Tags requests
// @Produce json
// @Param kind path string true "leave, forget-scan or swap-day"
// @Param id path string true "Request ID"
// @Success 200 {object} Request
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/{kind}/{id} [get]
func (c *RequestController) Get(ctx *fiber.Ctx) error {
	req, err := c.Service.Get(ctx.UserContext(), c.Kind, ctx.Params("id"), actorOf(ctx))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(req)
}

// Cancel godoc
// @Summary Cancel a pending request
// @Tags requests
// @Produce json
// @Param kind path string true "leave, forget-scan or swap-day"
// @Param id path string true "Request ID"
// @Success 200 {object} Request
// @Failure 400 {object} map[string]string "Already terminal"
// @Failure 409 {object} map[string]string "Lost a concurrent update"
// @Router /api/{kind}/cancel/{id} [post]
func (c *RequestController) Cancel(ctx *fiber.Ctx) error {
	req, err := c.Service.Cancel(ctx.UserContext(), c.Kind, ctx.Params("id"), actorOf(ctx))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(req)
}

// Edit godoc
// @Summary Edit the subject of a request nobody has acted on
// @Tags requests
// @Accept json
// @Produce json
// @Param kind path string true "leave, forget-scan or swap-day"
// @Param id path string true "Request ID"
// @Param body body map[string]interface{} true "Subject fields"
// @Success 200 {object} Request
// @Router /api/{kind}/edit/{id} [patch]
func (c *RequestController) Edit(ctx *fiber.Ctx) error {
	var fields map[string]any
	if err := ctx.BodyParser(&fields); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req, err := c.Service.Edit(ctx.UserContext(), c.Kind, ctx.Params("id"), actorOf(ctx), fields)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(req)
}

// Inbox godoc
// @Summary Stage inbox for manager, gm or coo
// @Tags requests
// @Produce json
// @Param kind path string true "leave, forget-scan or swap-day"
// @Param role path string true "manager, gm or coo"
// @Param scope query string false "ALL for the full stage history (admin)"
// @Success 200 {array} Request
// @Router /api/{kind}/inbox/{role} [get]
func (c *RequestController) Inbox(ctx *fiber.Ctx) error {
	stage, err := stageParam(ctx)
	if err != nil {
		return fail(ctx, err)
	}

	requests, err := c.Service.Inbox(ctx.UserContext(), c.Kind, actorOf(ctx), stage, ParseScope(ctx.Query("scope")))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(requests)
}

// Decide godoc
// @Summary Approve or reject at a stage
// @Tags requests
// @Accept json
// @Produce json
// @Param kind path string true "leave, forget-scan or swap-day"
// @Param role path string true "manager, gm or coo"
// @Param id path string true "Request ID"
// @Param body body DecisionInput true "APPROVE or REJECT; comment required to reject"
// @Success 200 {object} Request
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string "Lost a concurrent decision"
// @Router /api/{kind}/decision/{role}/{id} [post]
func (c *RequestController) Decide(ctx *fiber.Ctx) error {
	stage, err := stageParam(ctx)
	if err != nil {
		return fail(ctx, err)
	}

	var input DecisionInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	decision, ok := ParseDecision(input.Action)
	if !ok {
		return fail(ctx, fmt.Errorf("%w: action must be APPROVE or REJECT", ErrValidation))
	}

	req, err := c.Service.Decide(ctx.UserContext(), c.Kind, ctx.Params("id"), actorOf(ctx), stage, decision, input.Comment)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(req)
}

// AdminList godoc
// @Summary Filtered list of every request (admin)
// @Tags requests
// @Produce json
// @Param kind path string true "leave, forget-scan or swap-day"
// @Param employee_id query string false "Employee ID"
// @Param status query string false "Status"
// @Param from query string false "Created from (YYYY-MM-DD)"
// @Param to query string false "Created to, inclusive (YYYY-MM-DD)"
// @Param skip query int false "Skip"
// @Param limit query int false "Limit"
// @Success 200 {object} Page
// @Router /api/{kind}/admin [get]
func (c *RequestController) AdminList(ctx *fiber.Ctx) error {
	filter, err := adminFilter(ctx)
	if err != nil {
		return fail(ctx, err)
	}
	page, err := c.Service.AdminList(ctx.UserContext(), c.Kind, actorOf(ctx), filter)
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(page)
}

func adminFilter(ctx *fiber.Ctx) (AdminFilter, error) {
	skip, err := intQuery(ctx, "skip", 0)
	if err != nil {
		return AdminFilter{}, err
	}
	limit, err := intQuery(ctx, "limit", 50)
	if err != nil {
		return AdminFilter{}, err
	}
	return AdminFilter{
		EmployeeID: ctx.Query("employee_id"),
		Status:     ctx.Query("status"),
		From:       ctx.Query("from"),
		To:         ctx.Query("to"),
		Skip:       skip,
		Limit:      limit,
	}, nil
}

func intQuery(ctx *fiber.Ctx, key string, fallback int64) (int64, error) {
	raw := ctx.Query(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrValidation, key)
	}
	return n, nil
}

// ReportController serves cross-kind admin reports
type ReportController struct {
	Service ApprovalService
}

func NewReportController(service ApprovalService) *ReportController {
	return &ReportController{Service: service}
}

// Summary godoc
// @Summary Request counts per kind and status (admin)
// @Tags reports
// @Produce json
// @Success 200 {array} StatusCount
// @Router /api/requests/summary [get]
func (c *ReportController) Summary(ctx *fiber.Ctx) error {
	counts, err := c.Service.Summary(ctx.UserContext(), actorOf(ctx))
	if err != nil {
		return fail(ctx, err)
	}
	return ctx.JSON(counts)
}

// Export godoc
// @Summary Export requests to Excel (admin)
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param kind query string false "Request kind"
// @Success 200 {file} file
// @Router /api/requests/export [get]
func (c *ReportController) Export(ctx *fiber.Ctx) error {
	filter, err := adminFilter(ctx)
	if err != nil {
		return fail(ctx, err)
	}
	data, filename, err := c.Service.Export(ctx.UserContext(), ctx.Query("kind"), actorOf(ctx), filter)
	if err != nil {
		return fail(ctx, err)
	}

	ctx.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return ctx.Send(data)
}
