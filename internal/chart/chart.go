// Package chart turns a precipitation report into a renderer-neutral bar
// chart model.
package chart

import (
	"errors"
	"fmt"
	"math"

	"github.com/augurworld/augur/internal/domain"
)

// UncertaintyFactor scales the present value into the upper edge of the
// uncertainty band. It is a presentation placeholder, not a modelled interval.
const UncertaintyFactor = 1.3

// largeValueThreshold is the maximum above which the axis uses the wide step.
const largeValueThreshold = 299

const (
	narrowStep = 10
	wideStep   = 20
)

// Bar holds the values and heights for one return period.
// Heights are percentages of the axis maximum.
type Bar struct {
	Period        int     `json:"period"`
	Present       float64 `json:"present"`
	ClimateChange float64 `json:"climate_change"`

	// Set only when the uncertainty band is shown.
	Uncertainty float64 `json:"uncertainty,omitempty"`
	Overlap     float64 `json:"overlap,omitempty"`

	PresentHeight       float64 `json:"present_height"`
	ClimateChangeHeight float64 `json:"climate_change_height"`
	UncertaintyHeight   float64 `json:"uncertainty_height,omitempty"`
}

// Model describes one rendered chart.
type Model struct {
	Year        int       `json:"year"`
	Uncertainty bool      `json:"uncertainty"`
	Step        float64   `json:"step"`
	AxisMax     float64   `json:"axis_max"`
	Rows        []float64 `json:"rows"` // axis labels, ascending from 0
	Bars        []Bar     `json:"bars"`
}

// Render builds the chart for year across periods, in the given order.
func Render(report *domain.PrecipitationReport, year int, periods []int, uncertainty bool) (Model, error) {
	if report == nil {
		return Model{}, errors.New("chart: no report")
	}

	m := Model{Year: year, Uncertainty: uncertainty, Bars: make([]Bar, 0, len(periods))}
	maxValue := 0.0
	for _, period := range periods {
		e, ok := report.Estimate(year, period)
		if !ok {
			return Model{}, fmt.Errorf("chart: %w: year %d period %d", domain.ErrMissingField, year, period)
		}
		b := Bar{Period: period, Present: e.Present, ClimateChange: e.ClimateChange}
		maxValue = math.Max(maxValue, math.Max(e.Present, e.ClimateChange))
		if uncertainty {
			b.Uncertainty = UncertaintyBand(e.Present)
			b.Overlap = Overlap(e.Present)
			maxValue = math.Max(maxValue, b.Uncertainty)
		}
		m.Bars = append(m.Bars, b)
	}

	m.Step = Step(maxValue)
	m.AxisMax = AxisMax(maxValue)
	for v := 0.0; v <= m.AxisMax; v += m.Step {
		m.Rows = append(m.Rows, v)
	}
	for i := range m.Bars {
		b := &m.Bars[i]
		b.PresentHeight = percent(b.Present, m.AxisMax)
		b.ClimateChangeHeight = percent(b.ClimateChange, m.AxisMax)
		b.UncertaintyHeight = percent(b.Uncertainty, m.AxisMax)
	}
	return m, nil
}

// Step returns the axis label step for a series maximum.
func Step(maxValue float64) float64 {
	if maxValue > largeValueThreshold {
		return wideStep
	}
	return narrowStep
}

// AxisMax rounds maxValue up to a whole number of steps, never below one step.
func AxisMax(maxValue float64) float64 {
	step := Step(maxValue)
	return math.Max(step, math.Ceil(maxValue/step)*step)
}

// UncertaintyBand returns the upper edge of the uncertainty band for present.
func UncertaintyBand(present float64) float64 {
	return present * UncertaintyFactor
}

// Overlap returns the height, in percent of the uncertainty bar, that the
// present bar and the uncertainty bar share at their base.
func Overlap(present float64) float64 {
	band := UncertaintyBand(present)
	if band == 0 {
		return 0
	}
	return math.Ceil(100 - present*100/band)
}

func percent(v, axisMax float64) float64 {
	if axisMax == 0 {
		return 0
	}
	return v / axisMax * 100
}
