package providers

import (
	"github.com/smallbiznis/repairdesk/internal/providers/telegram"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	telegram.Module,
)
