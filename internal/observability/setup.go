package observability

import (
	"context"
	"net/http"

	"github.com/chethans2005/pawPatrol/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup initializes logging, metrics and tracing and returns the tracer
// shutdown hook plus the /metrics handler for the router to mount.
func Setup(serviceName, otlpEndpoint string) (func(context.Context) error, http.Handler) {
	observability.InitLogger()
	observability.InitMetrics()
	tracerShutdown := observability.InitTracing(serviceName, otlpEndpoint)
	return tracerShutdown, promhttp.Handler()
}
