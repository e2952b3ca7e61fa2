package locationapi

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augurworld/augur/internal/domain"
)

var lima = domain.Coordinate{Lat: -12.101622, Lng: -76.985037}

func testClient(baseURL string) *Client {
	c := New(baseURL, 2*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.initialBackoff = time.Millisecond
	c.maxBackoff = 2 * time.Millisecond
	return c
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":{"code":"` + code + `","message":"` + message + `"}}`))
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/location", r.URL.Path)
		assert.Equal(t, "-12.101622", r.URL.Query().Get("lat"))
		assert.Equal(t, "-76.985037", r.URL.Query().Get("lng"))
		_, _ = w.Write([]byte(`{"location":{"lat":-12.1,"lng":-76.95},"period":{"2030":{"years":{"10":{"present":83,"climate_change":95.2}}}}}`))
	}))
	defer srv.Close()

	report, err := testClient(srv.URL+"/").Fetch(context.Background(), lima)
	require.NoError(t, err)

	e, ok := report.Estimate(2030, 10)
	require.True(t, ok)
	assert.InDelta(t, 83, e.Present, 0)
	assert.InDelta(t, 95.2, e.ClimateChange, 1e-9)
}

func TestFetch_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
		want   error
	}{
		{"not found", http.StatusNotFound, "not_found", domain.ErrNotFound},
		{"bad request", http.StatusBadRequest, "bad_request", domain.ErrBadRequest},
		{"integrity", http.StatusInternalServerError, "data_integrity", domain.ErrMissingField},
		{"gateway", http.StatusBadGateway, "upstream_error", domain.ErrNetworkFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeAPIError(w, tt.status, tt.code, "nope")
			}))
			defer srv.Close()

			_, err := testClient(srv.URL).Fetch(context.Background(), lima)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			writeAPIError(w, http.StatusInternalServerError, "internal", "boom")
			return
		}
		_, _ = w.Write([]byte(`{"location":{"lat":1,"lng":2},"period":{}}`))
	}))
	defer srv.Close()

	report, err := testClient(srv.URL).Fetch(context.Background(), lima)
	require.NoError(t, err)
	assert.Equal(t, domain.GridPoint{Lat: 1, Lng: 2}, report.Location)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetch_DoesNotRetryNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		writeAPIError(w, http.StatusNotFound, "not_found", "outside coverage")
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), lima)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetch_GivesUpAfterAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), lima)
	require.ErrorIs(t, err, domain.ErrNetworkFailure)
	assert.Equal(t, int32(defaultAttempts), hits.Load())
}

func TestFetch_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"location":`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), lima)
	require.ErrorIs(t, err, domain.ErrNetworkFailure)
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testClient(url).Fetch(context.Background(), lima)
	require.ErrorIs(t, err, domain.ErrNetworkFailure)
}

func TestFetch_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := testClient(srv.URL).Fetch(ctx, lima)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/place", r.URL.Path)
		assert.Equal(t, "es", r.URL.Query().Get("lang"))
		assert.NoError(t, json.NewEncoder(w).Encode(domain.Place{Label: "San Borja, Lima, Peru"}))
	}))
	defer srv.Close()

	label, err := testClient(srv.URL).Label(context.Background(), lima, "es")
	require.NoError(t, err)
	assert.Equal(t, "San Borja, Lima, Peru", label)
}

func TestConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/config", r.URL.Path)
		_, _ = w.Write([]byte(`{"years":[2030,2040],"periods":[10,100],"overlay_periods":[10,100],"default_year":2030,"default_overlay_period":100,"languages":["en"]}`))
	}))
	defer srv.Close()

	cfg, err := testClient(srv.URL).Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2030, 2040}, cfg.Years)
	assert.Equal(t, 100, cfg.DefaultOverlayPeriod)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/location/download", r.URL.Path)
		_, _ = w.Write([]byte("# Data downloaded by augur.world\n"))
	}))
	defer srv.Close()

	body, err := testClient(srv.URL).Download(context.Background(), lima)
	require.NoError(t, err)
	assert.Equal(t, "# Data downloaded by augur.world\n", string(body))
}
