package gridstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/augurworld/augur/internal/domain"
	"github.com/jmoiron/sqlx"
)

// CreateTable creates a flat grid table for the schema, with one index per
// axis for the nearest-value scans and a unique index on the grid point.
func CreateTable(ctx context.Context, db *sqlx.DB, table string, schema *domain.Schema) error {
	if !ValidIdentifier(table) {
		return fmt.Errorf("invalid grid table name %q", table)
	}

	cols := []string{
		latColumn + " DOUBLE PRECISION NOT NULL",
		lngColumn + " DOUBLE PRECISION NOT NULL",
	}
	for _, f := range schema.Fields() {
		cols = append(cols, f+" DOUBLE PRECISION")
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", ")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %[1]s_%[2]s_idx ON %[1]s (%[2]s)", table, latColumn),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %[1]s_%[2]s_idx ON %[1]s (%[2]s)", table, lngColumn),
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_point_idx ON %[1]s (%[2]s, %[3]s)", table, latColumn, lngColumn),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create grid table: %w", err)
		}
	}
	return nil
}

// InsertCells writes cells in one transaction. Fields the schema does not
// list are ignored; schema fields the cell lacks are stored as NULL.
func InsertCells(ctx context.Context, db *sqlx.DB, table string, schema *domain.Schema, cells []domain.GridCell) error {
	if !ValidIdentifier(table) {
		return fmt.Errorf("invalid grid table name %q", table)
	}

	fields := schema.Fields()
	cols := append([]string{latColumn, lngColumn}, fields...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := db.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders))

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grid insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PreparexContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare grid insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for _, c := range cells {
		args[0], args[1] = c.Point.Lat, c.Point.Lng
		for i, f := range fields {
			if v, ok := c.Fields[f]; ok && v != nil {
				args[i+2] = *v
			} else {
				args[i+2] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert grid cell %s: %w", c.Point.Key(), err)
		}
	}
	return tx.Commit()
}
