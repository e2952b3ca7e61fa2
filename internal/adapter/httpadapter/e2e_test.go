package httpadapter_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/augurworld/augur/internal/adapter/cache"
	"github.com/augurworld/augur/internal/adapter/gridstore"
	"github.com/augurworld/augur/internal/adapter/httpadapter"
	"github.com/augurworld/augur/internal/domain"
	"github.com/augurworld/augur/internal/locator"
	"github.com/augurworld/augur/internal/observability"
)

// newSeededServer serves a small SQLite grid around Lima through the real
// store, locator and cache.
func newSeededServer(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	schema, err := domain.NewSchema(cfg.Grid.Years, cfg.Grid.Periods)
	require.NoError(t, err)

	db, err := gridstore.Open(ctx, gridstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, gridstore.CreateTable(ctx, db, "augur", schema))

	var cells []domain.GridCell
	for _, lat := range []float64{-12.15, -12.101622, -12.05} {
		for _, lng := range []float64{-77.0, -76.985037, -76.95} {
			cell := domain.GridCell{Point: domain.GridPoint{Lat: lat, Lng: lng}, Fields: map[string]*float64{}}
			for i, name := range schema.Fields() {
				v := 60 + float64(i)
				cell.Fields[name] = &v
			}
			cells = append(cells, cell)
		}
	}
	require.NoError(t, gridstore.InsertCells(ctx, db, "augur", schema, cells))

	store, err := gridstore.NewStore(db, "augur", 0.05, logger)
	require.NoError(t, err)
	columns, err := store.Columns(ctx)
	require.NoError(t, err)
	require.NoError(t, schema.Validate(columns))

	metrics := observability.NewMetricsForTesting()
	svc := locator.New(store, schema, metrics, logger, locator.WithCache(cache.NewReports(100)))
	srv, err := httpadapter.NewServer(cfg, svc, nil, metrics, logger)
	require.NoError(t, err)
	return srv
}

func TestEndToEnd_LimaReportComplete(t *testing.T) {
	srv := newSeededServer(t)

	rec := get(srv, "/location?lat=-12.101622&lng=-76.985037")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report domain.PrecipitationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, domain.GridPoint{Lat: -12.101622, Lng: -76.985037}, report.Location)
	require.Len(t, report.Years, 3)
	for _, y := range []int{2030, 2040, 2050} {
		require.Len(t, report.Years[y].Periods, 5, "year %d", y)
		for _, p := range []int{10, 20, 30, 50, 100} {
			e, ok := report.Estimate(y, p)
			require.True(t, ok)
			assert.Positive(t, e.Present)
			assert.Positive(t, e.ClimateChange)
		}
	}
}

func TestEndToEnd_SnapsToNearestCell(t *testing.T) {
	srv := newSeededServer(t)

	rec := get(srv, "/location?lat=-12.06&lng=-76.96")
	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.PrecipitationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, domain.GridPoint{Lat: -12.05, Lng: -76.95}, report.Location)
}

func TestEndToEnd_FarOutsideCoverageIs404(t *testing.T) {
	srv := newSeededServer(t)

	rec := get(srv, "/location?lat=47.3769&lng=8.5417")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Code)
	assert.NotContains(t, rec.Body.String(), "period")
}

func TestEndToEnd_Readiness(t *testing.T) {
	rec := get(newSeededServer(t), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}
