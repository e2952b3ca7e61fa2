package domain

// Estimate is the pair of values shown for one (year, return period).
type Estimate struct {
	Present       float64 `json:"present"`
	ClimateChange float64 `json:"climate_change"`
}

// PeriodEstimates holds the estimates of one future year keyed by return period.
type PeriodEstimates struct {
	Periods map[int]Estimate `json:"years"`
}

// PrecipitationReport is the reshaped API response for one grid cell.
type PrecipitationReport struct {
	Location GridPoint               `json:"location"`
	Years    map[int]PeriodEstimates `json:"period"`
}

// Estimate returns the entry for a future year and return period.
func (r *PrecipitationReport) Estimate(year, period int) (Estimate, bool) {
	if r == nil {
		return Estimate{}, false
	}
	y, ok := r.Years[year]
	if !ok {
		return Estimate{}, false
	}
	e, ok := y.Periods[period]
	return e, ok
}

// Complete reports whether every (year, period) of the schema is populated.
func (r *PrecipitationReport) Complete(s *Schema) bool {
	for _, year := range s.Years() {
		for _, period := range s.Periods() {
			if _, ok := r.Estimate(year, period); !ok {
				return false
			}
		}
	}
	return true
}
