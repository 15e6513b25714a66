package models

// Shortcodes are the TAHMO variables reported per station, in output order.
var Shortcodes = []string{"ap", "pr", "ra", "rh", "te", "wd", "wg", "ws"}

// PrecipitationShortcode is summed over the window; every other shortcode keeps its last sample.
const PrecipitationShortcode = "pr"

// MeasurementSet is the reduced view of one station's recent measurements.
type MeasurementSet struct {
	Values     map[string]float64 `json:"values"`
	LastReport string             `json:"last_report"`
	Code       string             `json:"code"`
}

// MeasurementsResponse mirrors the TAHMO controlled-measurements payload.
// Rows are positional; Columns names each position.
type MeasurementsResponse struct {
	Results []struct {
		Series []MeasurementSeries `json:"series"`
	} `json:"results"`
}

// MeasurementSeries is a single column/row block of a measurements response.
type MeasurementSeries struct {
	Columns []string `json:"columns"`
	Values  [][]any  `json:"values"`
}
