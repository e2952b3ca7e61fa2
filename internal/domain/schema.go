package domain

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

type fieldKey struct {
	period int
	year   int
}

// Schema maps each return period and (period, future year) pair to the grid
// column holding its value. It is built once from configuration and checked
// against the stored columns before any lookup is served.
type Schema struct {
	years         []int
	periods       []int
	present       map[int]string
	climateChange map[fieldKey]string
}

// NewSchema builds the column table for the configured years and periods.
// Both lists must be non-empty, positive and free of duplicates; their order
// is kept for reports, charts and downloads.
func NewSchema(years, periods []int) (*Schema, error) {
	if err := checkEnumeration("years", years); err != nil {
		return nil, err
	}
	if err := checkEnumeration("periods", periods); err != nil {
		return nil, err
	}

	s := &Schema{
		years:         slices.Clone(years),
		periods:       slices.Clone(periods),
		present:       make(map[int]string, len(periods)),
		climateChange: make(map[fieldKey]string, len(periods)*len(years)),
	}
	for _, p := range periods {
		s.present[p] = "year" + strconv.Itoa(p)
		for _, y := range years {
			s.climateChange[fieldKey{period: p, year: y}] = "year" + strconv.Itoa(p) + "_cchange" + strconv.Itoa(y)
		}
	}
	return s, nil
}

func checkEnumeration(name string, values []int) error {
	if len(values) == 0 {
		return fmt.Errorf("schema %s: at least one value is required", name)
	}
	seen := make(map[int]struct{}, len(values))
	for _, v := range values {
		if v <= 0 {
			return fmt.Errorf("schema %s: %d is not positive", name, v)
		}
		if _, dup := seen[v]; dup {
			return fmt.Errorf("schema %s: duplicate value %d", name, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// Years returns the configured future years in order.
func (s *Schema) Years() []int { return slices.Clone(s.years) }

// Periods returns the configured return periods in order.
func (s *Schema) Periods() []int { return slices.Clone(s.periods) }

// HasYear reports whether year is configured.
func (s *Schema) HasYear(year int) bool { return slices.Contains(s.years, year) }

// PresentField returns the column of the present-day value for a period.
func (s *Schema) PresentField(period int) (string, bool) {
	f, ok := s.present[period]
	return f, ok
}

// ClimateChangeField returns the column of the climate-change value for a
// period in a future year.
func (s *Schema) ClimateChangeField(period, year int) (string, bool) {
	f, ok := s.climateChange[fieldKey{period: period, year: year}]
	return f, ok
}

// Fields lists every required column, period by period, present value first.
func (s *Schema) Fields() []string {
	out := make([]string, 0, len(s.present)+len(s.climateChange))
	for _, p := range s.periods {
		out = append(out, s.present[p])
		for _, y := range s.years {
			out = append(out, s.climateChange[fieldKey{period: p, year: y}])
		}
	}
	return out
}

// Validate checks that every required column exists among the stored columns.
// The returned error is a *MissingFieldError naming all absent columns.
func (s *Schema) Validate(columns []string) error {
	if len(columns) == 0 {
		return errors.New("validate schema: no stored columns")
	}
	stored := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		stored[c] = struct{}{}
	}

	var missing []string
	for _, f := range append([]string{"latitude", "longitude"}, s.Fields()...) {
		if _, ok := stored[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return &MissingFieldError{Fields: missing}
	}
	return nil
}
