// Package export writes the plain-text report users download from the map.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/augurworld/augur/internal/domain"
)

// ContentType is the media type of a downloaded report.
const ContentType = "text/plain; charset=utf-8"

// Filename is the suggested attachment name for a downloaded report.
const Filename = "augur-data.txt"

// Write renders report for the selected coordinate: per period, the present
// value followed by the climate-change value of every year.
func Write(w io.Writer, coord domain.Coordinate, report *domain.PrecipitationReport, years, periods []int) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# Data downloaded by augur.world")
	fmt.Fprintln(bw, "# Selected coordinates:")
	fmt.Fprintf(bw, "lat = %s, lon = %s\n", formatValue(coord.Lat), formatValue(coord.Lng))
	fmt.Fprintln(bw, "# Precipitation data")

	for _, period := range periods {
		for i, year := range years {
			e, ok := report.Estimate(year, period)
			if !ok {
				return fmt.Errorf("export: %w: year %d period %d", domain.ErrMissingField, year, period)
			}
			if i == 0 {
				fmt.Fprintf(bw, "%d-Year in today: %s\n", period, formatValue(e.Present))
			}
			fmt.Fprintf(bw, "%d-Year in %d: %s\n", period, year, formatValue(e.ClimateChange))
		}
	}
	return bw.Flush()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
