package observability

import (
	"strings"

	"github.com/smallbiznis/repairdesk/internal/config"
)

// Config is the resolved telemetry setup shared by the logger, tracer and
// meter providers.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string
	LogOutput string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "repairdesk"
	}

	t := cfg.Telemetry
	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             strings.TrimSpace(t.LogLevel),
		LogFormat:            strings.TrimSpace(t.LogFormat),
		LogOutput:            strings.TrimSpace(t.LogOutput),
		OtelEnabled:          t.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(t.OTLPEndpoint),
		OtelExporterProtocol: strings.TrimSpace(t.OTLPProtocol),
		OtelSamplingRatio:    t.SamplingRatio,
	}
}

// Debug is true for an explicit debug log level and for local environments.
func (c Config) Debug() bool {
	if strings.EqualFold(c.LogLevel, "debug") {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
