package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erp-billing/internal/resilience"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestBreakerTransitions(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		MinRequests:  2,
		FailureRatio: 0.5,
		OpenFor:      50 * time.Millisecond,
		Now:          clock.Now,
	})
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.Equal(t, resilience.Open, breaker.State())
	require.False(t, breaker.Allow(ctx), "breaker should open after threshold exceeded")

	clock.Advance(60 * time.Millisecond)
	require.True(t, breaker.Allow(ctx), "breaker should move to half-open after cool off")
	require.False(t, breaker.Allow(ctx), "only one probe while half-open")
	breaker.Report(ctx, true)
	require.Equal(t, resilience.Closed, breaker.State())
	require.True(t, breaker.Allow(ctx))
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{MinRequests: 1, OpenFor: time.Second, Now: clock.Now})
	ctx := context.Background()

	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
	clock.Advance(time.Second)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
	require.False(t, breaker.Allow(ctx))
}

func TestBreakerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := resilience.NewMetrics("test", reg)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:      "backend",
		MinRequests: 1,
		OpenFor:     10 * time.Millisecond,
		Metrics:     metrics,
		Now:         clock.Now,
	})
	ctx := context.Background()

	breaker.Report(ctx, false)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.State.WithLabelValues("backend")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Opened.WithLabelValues("backend")))

	clock.Advance(20 * time.Millisecond)
	require.True(t, breaker.Allow(ctx))
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.State.WithLabelValues("backend")))

	breaker.Report(ctx, true)
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.State.WithLabelValues("backend")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("backend", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("backend", "open", "half_open")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Transitions.WithLabelValues("backend", "half_open", "closed")))

	// registering twice reuses the collectors
	again := resilience.NewMetrics("test", reg)
	require.Same(t, metrics.State, again.State)
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, base*4, resilience.Backoff(base, 3, 0))

	d := resilience.Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, base*2-(base*2/5))
	require.LessOrEqual(t, d, base*2+(base*2/5))
}
