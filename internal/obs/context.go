package obs

import (
	"context"

	"github.com/go-chi/chi/v5"
)

type routeKey struct{}

// WithRoutePattern pins a route label on ctx. Work that runs outside the
// router (worker tasks, tests) uses it to label audit entries and logs.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routeKey{}, pattern)
}

// RoutePatternFromContext returns the pinned route label, or the chi pattern
// matched so far. Inside a handler that is the full pattern, e.g.
// "/api/v1/bills/{id}"; in a middleware it is complete only once next returns.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routeKey{}).(string); ok && v != "" {
		return v
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

func routeLabel(ctx context.Context, fallback string) string {
	if route := RoutePatternFromContext(ctx); route != "" {
		return route
	}
	return fallback
}
