package chart

import (
	"fmt"
	"math"
	"strings"
)

const textWidth = 40

// Text draws the model as a horizontal bar chart for terminals.
func (m Model) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Precipitation in %d (axis 0-%g, step %g)\n", m.Year, m.AxisMax, m.Step)
	for _, bar := range m.Bars {
		fmt.Fprintf(&b, "%3d-Year  today        %-*s %.1f\n", bar.Period, textWidth, hashes(bar.PresentHeight, '#'), bar.Present)
		fmt.Fprintf(&b, "          %-12d %-*s %.1f\n", m.Year, textWidth, hashes(bar.ClimateChangeHeight, '='), bar.ClimateChange)
		if m.Uncertainty {
			fmt.Fprintf(&b, "          uncertainty  %-*s %.1f\n", textWidth, hashes(bar.UncertaintyHeight, '-'), bar.Uncertainty)
		}
	}
	return b.String()
}

func hashes(pct float64, r rune) string {
	n := int(math.Round(pct / 100 * textWidth))
	return strings.Repeat(string(r), max(0, min(n, textWidth)))
}
