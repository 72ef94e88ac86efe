package httpapi

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Middleware and response helpers never open their own spans.
const handlerSpanPrefix = "httpapi.Handler."

var (
	apiTracer    = otel.Tracer("lotto-feed/internal/interfaces/httpapi")
	disabledSpan = trace.SpanFromContext(context.Background())
)

// startSpan opens a child span for handler names when the request already
// carries one. Untraced routes such as /healthz get a no-op span.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if !strings.HasPrefix(name, handlerSpanPrefix) {
		return ctx, disabledSpan
	}
	if !trace.SpanContextFromContext(ctx).IsValid() {
		return ctx, disabledSpan
	}
	return apiTracer.Start(ctx, name)
}
