package swap_day

import (
	"go-hrflow/internal/common/api"
	"go-hrflow/internal/config"
	"go-hrflow/internal/features/approval"
)

// NewSwapDayApi serves /api/swap-day
func NewSwapDayApi(service approval.ApprovalService, config *config.Config) api.Route {
	return approval.NewKindApi(Kind{}, service, config)
}
