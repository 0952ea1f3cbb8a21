package audit

import (
	"github.com/smallbiznis/repairdesk/internal/audit/repository"
	"github.com/smallbiznis/repairdesk/internal/audit/service"
	"go.uber.org/fx"
)

// Module records who did what to which target in audit_logs.
var Module = fx.Module("audit",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
