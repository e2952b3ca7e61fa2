// Package urlstate converts the shareable part of the client state to and
// from URL query parameters.
package urlstate

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/augurworld/augur/internal/domain"
)

// Query parameter names.
const (
	KeyLat      = "lat"
	KeyLng      = "lng"
	KeyPeriod   = "period"
	KeyYear     = "year"
	KeyLanguage = "lang"
)

// State is the shareable subset of the client state.
type State struct {
	Coordinate    *domain.Coordinate
	Year          int
	OverlayPeriod int
	Language      string
}

// Codec encodes and decodes State against the configured enumerations.
type Codec struct {
	years          []int
	overlayPeriods []int
	defaultPeriod  int
}

// NewCodec builds a codec. The default year is the earliest configured year.
func NewCodec(years, overlayPeriods []int, defaultPeriod int) (*Codec, error) {
	if len(years) == 0 {
		return nil, errors.New("urlstate: no years configured")
	}
	if !slices.Contains(overlayPeriods, defaultPeriod) {
		return nil, fmt.Errorf("urlstate: default overlay period %d not in %v", defaultPeriod, overlayPeriods)
	}
	return &Codec{
		years:          slices.Clone(years),
		overlayPeriods: slices.Clone(overlayPeriods),
		defaultPeriod:  defaultPeriod,
	}, nil
}

// Defaults returns the state used when a parameter is absent or invalid.
func (c *Codec) Defaults() State {
	return State{Year: slices.Min(c.years), OverlayPeriod: c.defaultPeriod}
}

// ValidYear reports whether year is one of the configured years.
func (c *Codec) ValidYear(year int) bool { return slices.Contains(c.years, year) }

// ValidOverlayPeriod reports whether period is one of the configured overlay periods.
func (c *Codec) ValidOverlayPeriod(period int) bool {
	return slices.Contains(c.overlayPeriods, period)
}

// Encode writes s in canonical form: keys sorted, period and year always
// present, lat and lng only with a coordinate, lang only when set.
func (c *Codec) Encode(s State) string {
	v := url.Values{}
	if s.Coordinate != nil {
		v.Set(KeyLat, formatFloat(s.Coordinate.Lat))
		v.Set(KeyLng, formatFloat(s.Coordinate.Lng))
	}
	v.Set(KeyPeriod, strconv.Itoa(s.OverlayPeriod))
	v.Set(KeyYear, strconv.Itoa(s.Year))
	if s.Language != "" {
		v.Set(KeyLanguage, s.Language)
	}
	return v.Encode()
}

// Decode parses a query string. Unparsable or out-of-set values fall back to
// the defaults; the coordinate is kept only when both lat and lng are valid.
func (c *Codec) Decode(raw string) State {
	s := c.Defaults()
	// A malformed pair is dropped; everything that parsed is kept.
	v, _ := url.ParseQuery(strings.TrimPrefix(raw, "?"))

	if coord, ok := parseCoordinate(v.Get(KeyLat), v.Get(KeyLng)); ok {
		s.Coordinate = &coord
	}
	if year, err := strconv.Atoi(v.Get(KeyYear)); err == nil && c.ValidYear(year) {
		s.Year = year
	}
	if period, err := strconv.Atoi(v.Get(KeyPeriod)); err == nil && c.ValidOverlayPeriod(period) {
		s.OverlayPeriod = period
	}
	s.Language = v.Get(KeyLanguage)
	return s
}

// ShareURL returns base with the encoded state as its query.
func (c *Codec) ShareURL(base string, s State) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse share base url: %w", err)
	}
	u.RawQuery = c.Encode(s)
	return u.String(), nil
}

func parseCoordinate(lat, lng string) (domain.Coordinate, bool) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return domain.Coordinate{}, false
	}
	coord := domain.Coordinate{Lat: la, Lng: ln}
	return coord, coord.Valid()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
