package obs

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-kasir/internal/common"
)

const unmatchedRoute = "unmatched"

type routeKey struct{}

// WithRoutePattern records the chi pattern a request matched.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routeKey{}, pattern)
}

// RoutePatternFromContext returns the pattern stored by WithRoutePattern or "".
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	pattern, _ := ctx.Value(routeKey{}).(string)
	return pattern
}

// StatusRecorder remembers what a handler sent back so middleware can report it.
type StatusRecorder struct {
	http.ResponseWriter
	code    int
	written int64
	sent    bool
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, code: http.StatusOK}
}

func (s *StatusRecorder) WriteHeader(code int) {
	if s.sent {
		s.ResponseWriter.WriteHeader(code)
		return
	}
	s.code, s.sent = code, true
	s.ResponseWriter.WriteHeader(code)
}

func (s *StatusRecorder) Write(p []byte) (int, error) {
	s.sent = true
	n, err := s.ResponseWriter.Write(p)
	s.written += int64(n)
	return n, err
}

func (s *StatusRecorder) Status() int { return s.code }

func (s *StatusRecorder) BytesWritten() int64 { return s.written }

// HTTPObs feeds the request counters and latency histogram.
type HTTPObs struct {
	Metrics *HTTPMetrics
}

func (o HTTPObs) Middleware(next http.Handler) http.Handler {
	m := o.Metrics
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.InFlight.Inc()
		started := time.Now()
		rec := NewStatusRecorder(w)
		defer func() {
			m.InFlight.Dec()
			route := matchedRoute(r, unmatchedRoute)
			m.ReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
			m.ReqDur.WithLabelValues(r.Method, route).Observe(DurationMillis(time.Since(started)))
		}()
		next.ServeHTTP(rec, r)
	})
}

// RoutePatternMiddleware copies chi's matched pattern into the request context
// so loggers and audit entries share the same route label.
func RoutePatternMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := chi.RouteContext(r.Context())
		if rc == nil || rc.RoutePattern() == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithRoutePattern(r.Context(), rc.RoutePattern())))
	})
}

// TracingMiddleware opens a server span per request. The span is tagged with
// the operator and idempotency key so a checkout can be traced back to its till.
func TracingMiddleware(next http.Handler) http.Handler {
	tracer := otel.Tracer("backend-kasir/http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		rec := NewStatusRecorder(w)
		r = r.WithContext(ctx)
		next.ServeHTTP(rec, r)

		route := matchedRoute(r, r.URL.Path)
		span.SetName(r.Method + " " + route)
		attrs := []attribute.KeyValue{
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", rec.Status()),
		}
		if actor, ok := common.ActorFromContext(r.Context()); ok {
			attrs = append(attrs,
				attribute.String("enduser.id", actor.UserID),
				attribute.String("enduser.role", string(actor.Role)),
			)
		}
		if key := r.Header.Get(common.IdempotencyHeader); key != "" {
			attrs = append(attrs, attribute.String("kasir.idempotency_key", key))
		}
		span.SetAttributes(attrs...)
		if rec.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.Status()))
		}
	})
}

// InstrumentHandler wraps an endpoint mounted outside the traced API tree, such as /metrics.
func InstrumentHandler(h http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(h, operation)
}

func matchedRoute(r *http.Request, fallback string) string {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route
	}
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return fallback
}
