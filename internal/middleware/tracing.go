package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"plantspack/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// untraced paths are polled by load balancers and Prometheus.
var untraced = map[string]bool{
	"/health":       true,
	"/health/live":  true,
	"/health/ready": true,
	"/metrics":      true,
}

// apiArea returns the first segment under /api, e.g. "posts" for
// /api/posts/12/like. Non-API paths are reported as "web".
func apiArea(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return "web"
	}
	area, _, _ := strings.Cut(rest, "/")
	if area == "" {
		return "web"
	}
	return area
}

// TracingMiddleware opens a server span per request. Spans are named after
// the matched route pattern so ids never end up in the name.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if untraced[c.Path()] {
			return c.Next()
		}

		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), propagation.HeaderCarrier(c.GetReqHeaders()))

		area := apiArea(c.Path())
		ctx, span := observability.Tracer.Start(ctx, "plantspack "+c.Method(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.OriginalURL()),
				attribute.String("http.client_ip", c.IP()),
				attribute.String("plantspack.area", area),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Locals("spanID", span.SpanContext().SpanID().String())
		if requestID := c.Locals("requestid"); requestID != nil {
			span.SetAttributes(attribute.String("request.id", fmt.Sprintf("%v", requestID)))
		}
		c.Set("X-Trace-ID", traceID)
		c.SetUserContext(ctx)

		err := c.Next()

		route := c.Route().Path
		span.SetName(fmt.Sprintf("plantspack %s %s", c.Method(), route))
		span.SetAttributes(attribute.String("http.route", route))

		status := responseStatus(c, err)
		if err != nil {
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
			span.SetAttributes(attribute.Int64("plantspack.user_id", int64(uid)))
		}
		return err
	}
}
