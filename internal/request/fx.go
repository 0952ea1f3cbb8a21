package request

import (
	"github.com/smallbiznis/repairdesk/internal/request/repository"
	"github.com/smallbiznis/repairdesk/internal/request/service"
	"go.uber.org/fx"
)

var Module = fx.Module("request.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
