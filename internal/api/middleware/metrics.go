package middleware

import (
	"net/http"
	"time"

	"flowcanvas/pkg/logger"
	"flowcanvas/pkg/metrics"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Instrument records request metrics and a structured access log line. The
// chi route pattern keeps metric cardinality bounded.
func Instrument(log logger.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}

			m.RecordHTTPRequest(r.Method, route, ww.Status(), duration)
			log.InfoContext(r.Context(), "Request handled",
				"method", r.Method,
				"route", route,
				"status", ww.Status(),
				"duration", duration,
				"bytes", ww.BytesWritten(),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}
