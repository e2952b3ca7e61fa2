// Package domain models the AUGUR precipitation-risk grid and the reports
// derived from it.
//
// # Data Source
//
// Extreme precipitation estimates are precomputed at roughly 5 km resolution
// from the CHIRPS satellite product, corrected with GHCN station observations,
// and shifted by IPCC AR6 climate change signals (SSP5-8.5). The pipeline that
// produces them is external; this service reads its output as an opaque,
// read-only table.
//
// # Grid Conventions
//
// Each row of the grid table is one cell:
//
//	latitude | longitude | year10 | year10_cchange2030 | year10_cchange2040 | ...
//
// Coordinates are grid-aligned, never the arbitrary coordinates a user clicks.
// Values are annual maximum one-day precipitation sums in mm/day.
//
// Column naming:
//
//	year<P>              present-day value for return period P
//	year<P>_cchange<Y>   climate-change-adjusted value for period P in year Y
//
// The set of return periods and future years is configuration. [NewSchema]
// turns it into an explicit (period, year) → column table, and
// [Schema.Validate] checks that table against the stored columns at startup
// so a missing column is an integrity error, not a silent zero.
//
// # Resolution
//
// A query coordinate is snapped to the grid one axis at a time: the nearest
// stored latitude and the nearest stored longitude are found independently,
// then the cell at that exact pair is fetched. Near irregular coverage edges
// that pair may not exist, which surfaces as not found. Equidistant candidates
// resolve to the lower value (south or west).
//
// # Report Shape
//
// [PrecipitationReport] keys entries by future year, then by return period.
// Its JSON names ("period" for the year map, "years" for the period map) are
// the ones the web client has always read.
package domain
