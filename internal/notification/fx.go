package notification

import (
	"github.com/smallbiznis/repairdesk/internal/request/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(New),
	fx.Provide(func(s *Service) domain.Notifier { return s }),
)
