package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augurworld/augur/internal/observability"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testClient(baseURL string) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		breaker:    newBreaker(),
		metrics:    testMetrics(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_Search_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "Lima")
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "true", r.URL.Query().Get("autocomplete"))
		assert.Equal(t, "es", r.URL.Query().Get("language"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))

		resp := response{
			Features: []feature{
				{
					Center:    []float64{-77.0428, -12.0464},
					PlaceName: "Lima, Peru",
					Text:      "Lima",
					Relevance: 0.95,
				},
				{
					Center:    []float64{-84.1052, 40.7425},
					PlaceName: "Lima, Ohio, United States",
					Text:      "Lima",
					Relevance: 0.8,
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	places, err := c.Search(context.Background(), "Lima", "es")
	require.NoError(t, err)
	require.Len(t, places, 2)

	assert.InDelta(t, -12.0464, places[0].Lat, 1e-9)
	assert.InDelta(t, -77.0428, places[0].Lng, 1e-9)
	assert.Equal(t, "Lima, Peru", places[0].Label)
	assert.Equal(t, "Lima", places[0].Name)
	assert.InDelta(t, 0.95, places[0].Relevance, 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues("forward", "success")), 0)
}

func TestClient_Reverse_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// lon,lat order
		assert.Contains(t, r.URL.Path, "-76.985037,-12.101622")
		resp := response{
			Features: []feature{
				{
					Center:    []float64{-76.985037, -12.101622},
					PlaceName: "San Borja, Lima, Peru",
					Text:      "San Borja",
					Relevance: 0.98,
				},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	place, err := c.Reverse(context.Background(), -12.101622, -76.985037, "")
	require.NoError(t, err)

	assert.Equal(t, "San Borja, Lima, Peru", place.Label)
	assert.Equal(t, "San Borja", place.Name)
	assert.InDelta(t, 0.98, place.Relevance, 1e-9)
}

func TestClient_Search_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		assert.NoError(t, json.NewEncoder(w).Encode(response{Features: []feature{}}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	places, err := c.Search(context.Background(), "NONEXISTENT", "en")
	require.NoError(t, err)
	assert.Empty(t, places)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues("forward", "empty")), 0)
}

func TestClient_Reverse_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		assert.NoError(t, json.NewEncoder(w).Encode(response{}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	place, err := c.Reverse(context.Background(), 0, 0, "en")
	require.NoError(t, err)
	assert.Empty(t, place.Label)
}

func TestClient_Search_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.token = "bad-token"

	_, err := c.Search(context.Background(), "Lima", "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues("forward", "error")), 0)
}

func TestClient_Search_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}

	_, err := c.Search(context.Background(), "Lima", "en")
	require.Error(t, err)
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	for range 6 {
		_, err := c.Search(context.Background(), "Lima", "en")
		require.Error(t, err)
	}

	_, err := c.Search(context.Background(), "Lima", "en")
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(6), hits.Load())
}

func TestClient_CancelledCallsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set(headerContentType, contentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{
				{"center": []float64{-77.0428, -12.0464}, "place_name": "Lima, Peru", "text": "Lima", "relevance": 1.0},
			},
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 10 {
		_, err := c.Search(ctx, "Lima", "en")
		require.ErrorIs(t, err, context.Canceled)
	}

	places, err := c.Search(context.Background(), "Lima", "en")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Lima, Peru", places[0].Label)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, gobreaker.StateClosed, c.breaker.State())
}
