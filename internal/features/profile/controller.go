package profile

import (
	"go-hrflow/internal/features/approval"
	"go-hrflow/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type ProfileController struct {
	Service ProfileService
}

func NewProfileController(service ProfileService) *ProfileController {
	return &ProfileController{Service: service}
}

// GetMine godoc
// @Summary Get the caller's employee profile
// @Tags profiles
// @Produce json
// @Success 200 {object} EmployeeProfile
// @Failure 404 {object} map[string]string
// @Router /api/profiles/me [get]
func (ctrl *ProfileController) GetMine(c *fiber.Ctx) error {
	claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	p, err := ctrl.Service.GetByLogin(c.UserContext(), claims.UserID)
	if err != nil {
		return c.Status(approval.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(p)
}

// Get godoc
// @Summary Get an employee profile (admin)
// @Tags profiles
// @Produce json
// @Param employeeId path string true "Employee ID"
// @Success 200 {object} EmployeeProfile
// @Router /api/profiles/{employeeId} [get]
func (ctrl *ProfileController) Get(c *fiber.Ctx) error {
	p, err := ctrl.Service.GetByEmployeeID(c.UserContext(), c.Params("employeeId"))
	if err != nil {
		return c.Status(approval.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(p)
}

// Upsert godoc
// @Summary Create or update an employee profile (admin)
// @Tags profiles
// @Accept json
// @Produce json
// @Param employeeId path string true "Employee ID"
// @Param profile body ProfileInput true "Profile"
// @Success 200 {object} EmployeeProfile
// @Failure 400 {object} map[string]string
// @Router /api/profiles/{employeeId} [put]
func (ctrl *ProfileController) Upsert(c *fiber.Ctx) error {
	var input ProfileInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var actorID string
	if claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims); ok {
		actorID = claims.UserID
	}

	p, err := ctrl.Service.Upsert(c.UserContext(), c.Params("employeeId"), input, actorID)
	if err != nil {
		return c.Status(approval.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(p)
}
