package service

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kjstillabower/tahmo-weather-service/internal/models"
)

// AggregateMeasurements reduces a TAHMO controlled-measurements response to one
// value per shortcode. Precipitation is summed over the window; every other
// shortcode keeps its last non-null sample. All values are rounded to 2 decimals
// and default to 0.0.
func AggregateMeasurements(resp models.MeasurementsResponse) (models.MeasurementSet, error) {
	if len(resp.Results) == 0 || len(resp.Results[0].Series) == 0 {
		return models.MeasurementSet{}, fmt.Errorf("%w: measurement series missing", ErrDataUnavailable)
	}
	series := resp.Results[0].Series[0]

	idx := make(map[string]int, 4)
	for _, name := range []string{"time", "variable", "station", "value"} {
		i := columnIndex(series.Columns, name)
		if i < 0 {
			return models.MeasurementSet{}, fmt.Errorf("%w: measurement column %q missing", ErrDataUnavailable, name)
		}
		idx[name] = i
	}
	if len(series.Values) == 0 {
		return models.MeasurementSet{}, fmt.Errorf("%w: no measurement rows", ErrDataUnavailable)
	}

	samples := make(map[string][]any, len(models.Shortcodes))
	for _, code := range models.Shortcodes {
		samples[code] = nil
	}
	for _, row := range series.Values {
		variable, ok := cell(row, idx["variable"]).(string)
		if !ok {
			continue
		}
		if _, known := samples[variable]; !known {
			continue
		}
		if v := cell(row, idx["value"]); v != nil {
			samples[variable] = append(samples[variable], v)
		}
	}

	values := make(map[string]float64, len(models.Shortcodes))
	for code, list := range samples {
		if code == models.PrecipitationShortcode {
			values[code] = sumSamples(list)
			continue
		}
		values[code] = lastSample(list)
	}

	lastReport, ok := cell(series.Values[len(series.Values)-1], idx["time"]).(string)
	if !ok {
		return models.MeasurementSet{}, fmt.Errorf("%w: last row has no time", ErrDataUnavailable)
	}
	station, ok := cell(series.Values[0], idx["station"]).(string)
	if !ok {
		return models.MeasurementSet{}, fmt.Errorf("%w: first row has no station", ErrDataUnavailable)
	}

	return models.MeasurementSet{
		Values:     values,
		LastReport: lastReport,
		Code:       station,
	}, nil
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

// cell returns row[i], or nil when the row is too short.
func cell(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

// sumSamples adds the numeric samples. Non-numeric entries do not contribute.
func sumSamples(list []any) float64 {
	var total float64
	for _, v := range list {
		if f, ok := toFloat(v); ok {
			total += f
		}
	}
	return round2(total)
}

// lastSample returns the last sample, or 0.0 when the list is empty or the
// last entry is not numeric.
func lastSample(list []any) float64 {
	if len(list) == 0 {
		return 0
	}
	f, ok := toFloat(list[len(list)-1])
	if !ok {
		return 0
	}
	return round2(f)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// round2 rounds to 2 decimals from the exact binary value, so 2.675 (stored
// as 2.67499...) becomes 2.67.
func round2(f float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 2, 64), 64)
	if err != nil {
		return f
	}
	return r
}
