package mapbox

import (
	"context"
	"fmt"

	"github.com/augurworld/augur/internal/adapter/cache"
	"github.com/augurworld/augur/internal/domain"
	"github.com/augurworld/augur/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner   domain.Geocoder
	search  *cache.LRU[[]domain.Place]
	reverse *cache.LRU[domain.Place]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		search:  cache.NewLRU[[]domain.Place](maxEntries),
		reverse: cache.NewLRU[domain.Place](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) Search(ctx context.Context, query, lang string) ([]domain.Place, error) {
	key := fmt.Sprintf("search:%s|%s", lang, query)
	if places, ok := c.search.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("forward", "hit").Inc()
		return places, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("forward", "miss").Inc()

	places, err := c.inner.Search(ctx, query, lang)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if len(places) > 0 {
		c.search.Put(key, places)
	}
	return places, nil
}

func (c *CachedGeocoder) Reverse(ctx context.Context, lat, lng float64, lang string) (domain.Place, error) {
	key := fmt.Sprintf("rev:%.6f,%.6f|%s", lat, lng, lang)
	if place, ok := c.reverse.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("reverse", "hit").Inc()
		return place, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("reverse", "miss").Inc()

	place, err := c.inner.Reverse(ctx, lat, lng, lang)
	if err != nil {
		return place, err
	}
	if place.Label != "" {
		c.reverse.Put(key, place)
	}
	return place, nil
}
