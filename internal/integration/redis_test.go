//go:build integration

package integration_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augurworld/augur/internal/adapter/rediscache"
	"github.com/augurworld/augur/internal/domain"
	"github.com/augurworld/augur/internal/locator"
	"github.com/augurworld/augur/internal/observability"
)

func TestRedisReports_RoundTripWithTTL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := rediscache.Open(startRedis(ctx, t), "", 0)
	reports := rediscache.NewReports(client, time.Hour, discardLogger())
	defer reports.Close()
	require.NoError(t, reports.Ping(ctx))

	p := domain.GridPoint{Lat: -12.101622, Lng: -76.985037}
	_, ok := reports.Get(ctx, p)
	assert.False(t, ok)

	want := &domain.PrecipitationReport{
		Location: p,
		Years: map[int]domain.PeriodEstimates{
			2030: {Periods: map[int]domain.Estimate{100: {Present: 107.9, ClimateChange: 118.2}}},
		},
	}
	reports.Put(ctx, p, want)

	got, ok := reports.Get(ctx, p)
	require.True(t, ok)
	assert.Equal(t, want, got)

	ttl, err := client.TTL(ctx, "augur:report:"+p.Key()).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
}

// TestRedisReports_SharedBetweenInstances checks that a report cached by one
// API instance is served from Redis by another.
func TestRedisReports_SharedBetweenInstances(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	addr := startRedis(ctx, t)
	store, schema := seedGrid(ctx, t)

	newInstance := func() (*locator.Service, *observability.Metrics) {
		reports := rediscache.NewReports(rediscache.Open(addr, "", 0), time.Hour, discardLogger())
		t.Cleanup(func() { _ = reports.Close() })
		metrics := observability.NewMetricsForTesting()
		return locator.New(store, schema, metrics, discardLogger(), locator.WithCache(reports)), metrics
	}

	first, firstMetrics := newInstance()
	second, secondMetrics := newInstance()

	q := domain.LocationQuery{Lat: -12.1, Lng: -76.98}
	want, err := first.Lookup(ctx, q)
	require.NoError(t, err)
	got, err := second.Lookup(ctx, q)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.InDelta(t, 1, testutil.ToFloat64(firstMetrics.ReportCache.WithLabelValues("miss")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(secondMetrics.ReportCache.WithLabelValues("hit")), 0)
}
