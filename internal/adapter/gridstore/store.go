// Package gridstore reads the precomputed precipitation grid from a SQL
// database. SQLite (modernc.org/sqlite) is the default backend; a grid loaded
// into Postgres is read through the pgx stdlib driver.
package gridstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/augurworld/augur/internal/domain"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

const (
	latColumn = "latitude"
	lngColumn = "longitude"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name is safe to splice into SQL as a table name.
func ValidIdentifier(name string) bool {
	return identRe.MatchString(name)
}

// Open connects to the grid database with the given driver.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported grid database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open grid database: %w", err)
	}
	// Every connection to an in-memory SQLite database is a separate database.
	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping grid database: %w", err)
	}
	return db, nil
}

// Store resolves query coordinates to grid cells.
type Store struct {
	db      *sqlx.DB
	table   string
	maxSnap float64
	logger  *slog.Logger
}

// NewStore wraps a grid table. maxSnap is the largest per-axis distance, in
// degrees, between a query and the grid value it snaps to; beyond it the
// location counts as outside coverage. A non-positive maxSnap disables the check.
func NewStore(db *sqlx.DB, table string, maxSnap float64, logger *slog.Logger) (*Store, error) {
	if !ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid grid table name %q", table)
	}
	return &Store{db: db, table: table, maxSnap: maxSnap, logger: logger}, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Columns returns the stored column names of the grid table.
func (s *Store) Columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryxContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 1", s.table))
	if err != nil {
		return nil, fmt.Errorf("read grid columns: %w", err)
	}
	defer rows.Close()
	return rows.Columns()
}

// Resolve snaps a query coordinate to the grid and returns the cell there.
func (s *Store) Resolve(ctx context.Context, lat, lng float64) (domain.GridCell, error) {
	p, err := s.Nearest(ctx, lat, lng)
	if err != nil {
		return domain.GridCell{}, err
	}
	return s.Cell(ctx, p)
}

// Nearest finds the nearest stored latitude and the nearest stored longitude
// independently. Ties go to the lower value.
func (s *Store) Nearest(ctx context.Context, lat, lng float64) (domain.GridPoint, error) {
	gridLat, err := s.nearestOnAxis(ctx, latColumn, lat)
	if err != nil {
		return domain.GridPoint{}, err
	}
	gridLng, err := s.nearestOnAxis(ctx, lngColumn, lng)
	if err != nil {
		return domain.GridPoint{}, err
	}

	if s.maxSnap > 0 && (math.Abs(gridLat-lat) > s.maxSnap || math.Abs(gridLng-lng) > s.maxSnap) {
		s.logger.Debug("query outside grid coverage",
			"lat", lat, "lng", lng, "grid_lat", gridLat, "grid_lng", gridLng)
		return domain.GridPoint{}, fmt.Errorf("%w: %.6f,%.6f is outside coverage", domain.ErrNotFound, lat, lng)
	}
	return domain.GridPoint{Lat: gridLat, Lng: gridLng}, nil
}

// nearestOnAxis runs two index-backed range scans, one on each side of v.
func (s *Store) nearestOnAxis(ctx context.Context, column string, v float64) (float64, error) {
	var below, above sql.NullFloat64

	q := s.db.Rebind(fmt.Sprintf("SELECT MAX(%[1]s) FROM %[2]s WHERE %[1]s <= ?", column, s.table))
	if err := s.db.GetContext(ctx, &below, q, v); err != nil {
		return 0, fmt.Errorf("nearest %s below %v: %w", column, v, err)
	}
	q = s.db.Rebind(fmt.Sprintf("SELECT MIN(%[1]s) FROM %[2]s WHERE %[1]s >= ?", column, s.table))
	if err := s.db.GetContext(ctx, &above, q, v); err != nil {
		return 0, fmt.Errorf("nearest %s above %v: %w", column, v, err)
	}

	switch {
	case !below.Valid && !above.Valid:
		return 0, fmt.Errorf("%w: grid has no %s values", domain.ErrNotFound, column)
	case !below.Valid:
		return above.Float64, nil
	case !above.Valid:
		return below.Float64, nil
	case above.Float64-v < v-below.Float64:
		return above.Float64, nil
	default:
		return below.Float64, nil
	}
}

// Cell fetches the cell stored at exactly p.
func (s *Store) Cell(ctx context.Context, p domain.GridPoint) (domain.GridCell, error) {
	q := s.db.Rebind(fmt.Sprintf("SELECT * FROM %s WHERE %s = ? AND %s = ? LIMIT 1", s.table, latColumn, lngColumn))
	rows, err := s.db.QueryxContext(ctx, q, p.Lat, p.Lng)
	if err != nil {
		return domain.GridCell{}, fmt.Errorf("query grid cell: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.GridCell{}, fmt.Errorf("query grid cell: %w", err)
		}
		return domain.GridCell{}, fmt.Errorf("%w: no cell at %s", domain.ErrNotFound, p.Key())
	}

	raw := make(map[string]any)
	if err := rows.MapScan(raw); err != nil {
		return domain.GridCell{}, fmt.Errorf("scan grid cell: %w", err)
	}
	return cellFromRow(p, raw, s.logger), nil
}

func cellFromRow(p domain.GridPoint, raw map[string]any, logger *slog.Logger) domain.GridCell {
	cell := domain.GridCell{Point: p, Fields: make(map[string]*float64, len(raw))}
	for name, v := range raw {
		if name == latColumn || name == lngColumn {
			continue
		}
		if v == nil {
			cell.Fields[name] = nil
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			logger.Debug("skipping non-numeric grid column", "column", name)
			continue
		}
		cell.Fields[name] = &f
	}
	return cell
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// IntegrityReport summarises structural problems in the grid table.
type IntegrityReport struct {
	Rows            int `db:"row_count"`
	NullCoordinates int `db:"null_coordinates"`
	DuplicatePoints int `db:"duplicate_points"`
}

// Integrity counts rows, rows without coordinates, and grid points stored more than once.
func (s *Store) Integrity(ctx context.Context) (IntegrityReport, error) {
	var r IntegrityReport
	q := fmt.Sprintf(`
		SELECT
			(SELECT COUNT(*) FROM %[1]s) AS row_count,
			(SELECT COUNT(*) FROM %[1]s WHERE %[2]s IS NULL OR %[3]s IS NULL) AS null_coordinates,
			(SELECT COUNT(*) FROM (
				SELECT %[2]s, %[3]s FROM %[1]s GROUP BY %[2]s, %[3]s HAVING COUNT(*) > 1
			) dup) AS duplicate_points`, s.table, latColumn, lngColumn)
	if err := s.db.GetContext(ctx, &r, q); err != nil {
		return IntegrityReport{}, fmt.Errorf("grid integrity: %w", err)
	}
	return r, nil
}

// SamplePoints returns up to limit stored grid points in coordinate order.
func (s *Store) SamplePoints(ctx context.Context, limit int) ([]domain.GridPoint, error) {
	if limit <= 0 {
		return nil, errors.New("sample limit must be positive")
	}
	q := s.db.Rebind(fmt.Sprintf(
		"SELECT %[2]s AS lat, %[3]s AS lng FROM %[1]s WHERE %[2]s IS NOT NULL AND %[3]s IS NOT NULL ORDER BY %[2]s, %[3]s LIMIT ?",
		s.table, latColumn, lngColumn))

	var points []domain.GridPoint
	if err := s.db.SelectContext(ctx, &points, q, limit); err != nil {
		return nil, fmt.Errorf("sample grid points: %w", err)
	}
	return points, nil
}
