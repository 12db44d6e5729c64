package system

import (
	"go-hrflow/internal/features/approval"
	"go-hrflow/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type DebugController struct{}

func NewDebugController() *DebugController {
	return &DebugController{}
}

// GetCurrentUser godoc
// @Summary      Get current user info
// @Description  Shows the raw token roles next to the roles the approval engine recognises
// @Tags         debug
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/debug/me [get]
func (c *DebugController) GetCurrentUser(ctx *fiber.Ctx) error {
	claims, _ := ctx.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if claims == nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}
	actor := approval.ActorFromClaims(claims)

	return ctx.JSON(fiber.Map{
		"user_id":   claims.UserID,
		"raw_roles": claims.Roles,
		"roles":     actor.Roles,
		"is_admin":  actor.IsAdmin(),
	})
}
