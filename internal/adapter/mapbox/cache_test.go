package mapbox

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augurworld/augur/internal/domain"
)

type countingGeocoder struct {
	searches int
	reverses int
	places   []domain.Place
	err      error
}

func (g *countingGeocoder) Search(_ context.Context, _, _ string) ([]domain.Place, error) {
	g.searches++
	return g.places, g.err
}

func (g *countingGeocoder) Reverse(_ context.Context, _, _ float64, _ string) (domain.Place, error) {
	g.reverses++
	if len(g.places) == 0 {
		return domain.Place{}, g.err
	}
	return g.places[0], g.err
}

func TestCachedGeocoder_SearchHit(t *testing.T) {
	inner := &countingGeocoder{places: []domain.Place{{Label: "Lima, Peru"}}}
	c := NewCachedGeocoder(inner, 10, testMetrics())

	first, err := c.Search(context.Background(), "Lima", "en")
	require.NoError(t, err)
	second, err := c.Search(context.Background(), "Lima", "en")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.searches)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeocodeCache.WithLabelValues("forward", "hit")), 0)
}

func TestCachedGeocoder_KeyIncludesLanguage(t *testing.T) {
	inner := &countingGeocoder{places: []domain.Place{{Label: "Lima"}}}
	c := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = c.Search(context.Background(), "Lima", "en")
	_, _ = c.Search(context.Background(), "Lima", "es")
	assert.Equal(t, 2, inner.searches)
}

func TestCachedGeocoder_EmptyNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	c := NewCachedGeocoder(inner, 10, testMetrics())

	_, _ = c.Search(context.Background(), "nowhere", "en")
	_, _ = c.Search(context.Background(), "nowhere", "en")
	assert.Equal(t, 2, inner.searches)

	_, _ = c.Reverse(context.Background(), 1, 2, "en")
	_, _ = c.Reverse(context.Background(), 1, 2, "en")
	assert.Equal(t, 2, inner.reverses)
}

func TestCachedGeocoder_ReverseHit(t *testing.T) {
	inner := &countingGeocoder{places: []domain.Place{{Label: "San Borja"}}}
	c := NewCachedGeocoder(inner, 10, testMetrics())

	_, err := c.Reverse(context.Background(), -12.1, -76.98, "en")
	require.NoError(t, err)
	place, err := c.Reverse(context.Background(), -12.1, -76.98, "en")
	require.NoError(t, err)

	assert.Equal(t, "San Borja", place.Label)
	assert.Equal(t, 1, inner.reverses)
}

func TestCachedGeocoder_ErrorPassesThrough(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("boom")}
	c := NewCachedGeocoder(inner, 10, testMetrics())

	_, err := c.Search(context.Background(), "Lima", "en")
	require.Error(t, err)
}
