package domain

import (
	"fmt"
	"math"
)

// Coordinate is a WGS-84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within WGS-84 bounds.
func (c Coordinate) Valid() bool {
	return !math.IsNaN(c.Lat) && !math.IsNaN(c.Lng) &&
		c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// LocationQuery is a lookup request for an arbitrary, non grid-aligned point.
type LocationQuery struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lng float64 `validate:"gte=-180,lte=180"`
}

// GridPoint is a grid-aligned coordinate pair as stored in the grid table.
type GridPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Key identifies the point in caches and event keys.
func (p GridPoint) Key() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// GridCell is one stored record: its grid point and its numeric fields by
// column name. A nil value means the stored field was NULL.
type GridCell struct {
	Point  GridPoint
	Fields map[string]*float64
}

// Field returns the named value and whether it is present and non-NULL.
func (c GridCell) Field(name string) (float64, bool) {
	v, ok := c.Fields[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}
