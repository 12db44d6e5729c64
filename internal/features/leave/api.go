package leave

import (
	"go-hrflow/internal/common/api"
	"go-hrflow/internal/config"
	"go-hrflow/internal/features/approval"
)

// NewLeaveApi serves /api/leave
func NewLeaveApi(service approval.ApprovalService, config *config.Config) api.Route {
	return approval.NewKindApi(Kind{}, service, config)
}
