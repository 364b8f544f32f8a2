package observability

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TraceMiddleware starts a server span per request using the otelhttp instrumentation.
// The span name is the method plus path; RequestLoggerMiddleware later adds the matched chi route.
func TraceMiddleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, service,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + SanitizeRoute(r.URL.Path)
			}),
		)
	}
}

// TracingTransport wraps base with client-side spans and trace propagation headers.
func TracingTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base)
}
