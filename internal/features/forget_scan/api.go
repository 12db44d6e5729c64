package forget_scan

import (
	"go-hrflow/internal/common/api"
	"go-hrflow/internal/config"
	"go-hrflow/internal/features/approval"
)

// NewForgetScanApi serves /api/forget-scan
func NewForgetScanApi(service approval.ApprovalService, config *config.Config) api.Route {
	return approval.NewKindApi(Kind{}, service, config)
}
