// Command genmock writes a synthetic precipitation grid for local development
// and demos. Cells are laid out on a regular grid around a centre point and
// carry every column the configured years and return periods require.
// Values are deterministic: the same flags always produce the same table.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -dsn ./data.db -lat -12.05 -lng -76.95 -radius 1 -step 0.1
package main

import (
	"context"
	"flag"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/augurworld/augur/internal/adapter/gridstore"
	"github.com/augurworld/augur/internal/config"
	"github.com/augurworld/augur/internal/domain"
)

const baselineYear = 2020

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load()

	driver := flag.String("driver", sharedcfg.EnvOrDefault("DB_DRIVER", gridstore.DriverSQLite), "database driver (sqlite or pgx)")
	dsn := flag.String("dsn", sharedcfg.EnvOrDefault("DATABASE_URL", "./data.db"), "database DSN")
	table := flag.String("table", sharedcfg.EnvOrDefault("GRID_TABLE", "augur"), "grid table name")
	lat := flag.Float64("lat", -12.05, "centre latitude")
	lng := flag.Float64("lng", -76.95, "centre longitude")
	radius := flag.Float64("radius", 1, "half-width of the grid in degrees")
	step := flag.Float64("step", 0.1, "grid spacing in degrees")
	flag.Parse()

	if *step <= 0 || *radius < 0 {
		flag.Usage()
		return fmt.Errorf("step must be positive and radius non-negative")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	schema, err := domain.NewSchema(cfg.Grid.Years, cfg.Grid.Periods)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := gridstore.Open(ctx, *driver, *dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := gridstore.CreateTable(ctx, db, *table, schema); err != nil {
		return err
	}

	cells := buildGrid(schema, domain.Coordinate{Lat: *lat, Lng: *lng}, *radius, *step)
	if err := gridstore.InsertCells(ctx, db, *table, schema, cells); err != nil {
		return err
	}

	log.Printf("wrote %d cells to %s (%s), step %g around %g,%g", len(cells), *table, *driver, *step, *lat, *lng)
	return nil
}

// buildGrid lays out cells on multiples of step so that neighbouring runs
// share grid lines.
func buildGrid(schema *domain.Schema, centre domain.Coordinate, radius, step float64) []domain.GridCell {
	n := int(math.Round(radius / step))
	latOrigin := math.Round(centre.Lat/step) * step
	lngOrigin := math.Round(centre.Lng/step) * step

	var cells []domain.GridCell //nolint:prealloc // cells outside WGS-84 bounds are skipped
	for i := -n; i <= n; i++ {
		for j := -n; j <= n; j++ {
			p := domain.GridPoint{
				Lat: roundTo(latOrigin+float64(i)*step, 6),
				Lng: roundTo(lngOrigin+float64(j)*step, 6),
			}
			if !(domain.Coordinate{Lat: p.Lat, Lng: p.Lng}).Valid() {
				continue
			}
			cells = append(cells, makeCell(schema, p))
		}
	}
	return cells
}

// makeCell derives plausible daily maxima: present values grow with the log
// of the return period, and climate-change values grow with the horizon.
func makeCell(schema *domain.Schema, p domain.GridPoint) domain.GridCell {
	cell := domain.GridCell{Point: p, Fields: map[string]*float64{}}
	base := 30 + 20*noise(p)
	for _, period := range schema.Periods() {
		present := roundTo(base*(1+0.35*math.Log(float64(period))), 1)
		if f, ok := schema.PresentField(period); ok {
			cell.Fields[f] = &present
		}
		for _, year := range schema.Years() {
			cc := roundTo(present*(1+0.012*float64(year-baselineYear)/10*math.Log1p(float64(period))), 1)
			if f, ok := schema.ClimateChangeField(period, year); ok {
				cell.Fields[f] = &cc
			}
		}
	}
	return cell
}

// noise maps a grid point to a stable value in [0, 1).
func noise(p domain.GridPoint) float64 {
	h := fnv.New64a()
	fmt.Fprint(h, p.Key())
	return float64(h.Sum64()%10000) / 10000
}

func roundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
