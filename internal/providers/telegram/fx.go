package telegram

import (
	"github.com/smallbiznis/repairdesk/internal/config"
	"github.com/smallbiznis/repairdesk/internal/observability/tracing"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.telegram",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns the Bot API client, or the no-op provider when
// credentials are absent. Production startup rejects missing credentials
// earlier in config validation.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if !cfg.Telegram.Configured() {
		log.Warn("telegram credentials not configured; staff notifications are disabled")
		return &NoOpProvider{}
	}
	return NewClient(Config{
		BotToken: cfg.Telegram.BotToken,
		APIURL:   cfg.Telegram.APIURL,
		Timeout:  cfg.Telegram.Timeout,
	}, tracing.WrapHTTPClient(nil, "telegram"))
}
