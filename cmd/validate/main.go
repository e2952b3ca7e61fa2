// Command validate checks that a precipitation grid database can back the
// location API: the stored columns match the configured years and return
// periods, every row has a unique grid point, stored points resolve to
// themselves, and their cells reshape into complete reports.
//
// It reads the same environment as the API (DB_DRIVER, DATABASE_URL,
// GRID_TABLE, GRID_YEARS, GRID_PERIODS, GRID_MAX_SNAP_DEGREES).
//
// Usage:
//
//	go run ./cmd/validate -sample 500
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/augurworld/augur/internal/adapter/gridstore"
	"github.com/augurworld/augur/internal/config"
	"github.com/augurworld/augur/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	sample := flag.Int("sample", 200, "number of stored grid points to resolve and reshape")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	code := run(ctx, cfg, *sample)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, sample int) int {
	fmt.Println("=== Grid Integrity Validation ===")
	fmt.Printf("%s %s (table %s)\n\n", cfg.DBDriver, cfg.DatabaseURL, cfg.GridTable)

	schema, err := domain.NewSchema(cfg.Grid.Years, cfg.Grid.Periods)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: schema: %v\n", err)
		return 1
	}

	db, err := gridstore.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	defer db.Close()

	store, err := gridstore.NewStore(db, cfg.GridTable, cfg.MaxSnap, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	points, err := store.SamplePoints(ctx, sample)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSchemaAlignment(ctx, store, schema),
		validateCoordinates(ctx, store),
		validateSelfResolution(ctx, store, points),
		validateReshape(ctx, store, schema, points),
	}

	return report(phases, len(points))
}

func report(phases []*phase, sampled int) int {
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Printf("\nSampled grid points: %d\n", sampled)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateSchemaAlignment(ctx context.Context, store *gridstore.Store, schema *domain.Schema) *phase {
	p := &phase{name: "Schema alignment"}
	columns, err := store.Columns(ctx)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if err := schema.Validate(columns); err != nil {
		p.errorf("%v", err)
	}
	return p
}

func validateCoordinates(ctx context.Context, store *gridstore.Store) *phase {
	p := &phase{name: "Coordinate integrity"}
	r, err := store.Integrity(ctx)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if r.Rows == 0 {
		p.errorf("grid table is empty")
	}
	if r.NullCoordinates > 0 {
		p.errorf("%d rows have no latitude or longitude", r.NullCoordinates)
	}
	if r.DuplicatePoints > 0 {
		p.errorf("%d grid points are stored more than once", r.DuplicatePoints)
	}
	return p
}

// validateSelfResolution checks that querying a stored point snaps to that point.
func validateSelfResolution(ctx context.Context, store *gridstore.Store, points []domain.GridPoint) *phase {
	p := &phase{name: "Stored points resolve to themselves"}
	for _, gp := range points {
		got, err := store.Nearest(ctx, gp.Lat, gp.Lng)
		if err != nil {
			p.errorf("%s: %v", gp.Key(), err)
			continue
		}
		if got != gp {
			p.errorf("%s resolved to %s", gp.Key(), got.Key())
		}
	}
	return p
}

func validateReshape(ctx context.Context, store *gridstore.Store, schema *domain.Schema, points []domain.GridPoint) *phase {
	p := &phase{name: "Reports complete for every year and period"}
	for _, gp := range points {
		cell, err := store.Cell(ctx, gp)
		if err != nil {
			p.errorf("%s: %v", gp.Key(), err)
			continue
		}
		r, err := domain.Reshape(cell, schema)
		if err != nil {
			p.errorf("%s: %v", gp.Key(), err)
			continue
		}
		if !r.Complete(schema) {
			p.errorf("%s: report is incomplete", gp.Key())
		}
	}
	return p
}
