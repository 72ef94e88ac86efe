package observability

import (
	"context"
	"strings"

	"github.com/riskibarqy/lotto-feed/internal/config"
	"github.com/riskibarqy/lotto-feed/internal/platform/logging"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.opentelemetry.io/otel/attribute"
)

func noopShutdown(context.Context) error { return nil }

// InitUptrace installs the global OpenTelemetry providers. Spans carry the
// draw schedule so traces from differently configured deployments can be
// told apart. The returned func flushes pending spans.
func InitUptrace(cfg config.Config, logger *logging.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = logging.Default()
	}

	switch {
	case !cfg.UptraceEnabled:
		logger.Info("uptrace disabled", "reason", "UPTRACE_ENABLED=false")
		return noopShutdown, nil
	case strings.TrimSpace(cfg.UptraceDSN) == "":
		logger.Info("uptrace disabled", "reason", "UPTRACE_DSN empty")
		return noopShutdown, nil
	}

	attrs := []attribute.KeyValue{attribute.String("lotto.source.secondary_enabled", boolString(cfg.SecondaryEnabled))}
	if cfg.Schedule.Location != nil {
		attrs = append(attrs,
			attribute.String("lotto.draw.timezone", cfg.Schedule.Location.String()),
			attribute.String("lotto.draw.weekday", cfg.Schedule.Weekday.String()),
			attribute.Int("lotto.draw.reference_round", cfg.Schedule.ReferenceRound),
		)
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(cfg.ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.AppEnv),
		uptrace.WithResourceAttributes(attrs...),
	)

	logger.Info("uptrace enabled",
		"service_name", cfg.ServiceName,
		"service_version", cfg.ServiceVersion,
		"environment", cfg.AppEnv,
	)

	return uptrace.Shutdown, nil
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
