package observability

import (
	"context"

	"github.com/Martins1-1/logsonlinee-sub000/internal/config"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/observability"
)

// Setup wires logging, metrics and tracing. The returned func flushes
// them in reverse order.
func Setup(serviceName string, cfg *config.Config) func(context.Context) error {
	syncLogs := observability.InitLogger(cfg.LogLevel)
	observability.InitMetrics()
	tracerShutdown := observability.InitTracing(serviceName, cfg.OTLPEndpoint)
	return func(ctx context.Context) error {
		err := tracerShutdown(ctx)
		syncLogs()
		return err
	}
}
