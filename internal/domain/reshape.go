package domain

// Reshape turns a flat grid cell into a report keyed by future year and
// return period. Every (year, period) pair of the schema is emitted; a field
// that is absent or NULL fails the whole cell with a *MissingFieldError rather
// than defaulting to zero.
func Reshape(cell GridCell, s *Schema) (*PrecipitationReport, error) {
	report := &PrecipitationReport{
		Location: cell.Point,
		Years:    make(map[int]PeriodEstimates, len(s.years)),
	}

	var missing []string
	present := make(map[int]float64, len(s.periods))
	for _, p := range s.periods {
		name := s.present[p]
		v, ok := cell.Field(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		present[p] = v
	}

	for _, y := range s.years {
		estimates := PeriodEstimates{Periods: make(map[int]Estimate, len(s.periods))}
		for _, p := range s.periods {
			name := s.climateChange[fieldKey{period: p, year: y}]
			cc, ok := cell.Field(name)
			if !ok {
				missing = append(missing, name)
				continue
			}
			estimates.Periods[p] = Estimate{Present: present[p], ClimateChange: cc}
		}
		report.Years[y] = estimates
	}

	if len(missing) > 0 {
		return nil, &MissingFieldError{Fields: missing}
	}
	return report, nil
}
