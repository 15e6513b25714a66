package models

import "encoding/json"

// ForecastPoint is one day of forecast precipitation. A nil value is a
// day the provider returned without data.
type ForecastPoint struct {
	Date          string
	Precipitation *float64
}

// MarshalJSON encodes the point as a [date, value] pair.
func (p ForecastPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Date, p.Precipitation})
}

// ForecastSeries is the day-granularity forecast in provider order.
type ForecastSeries []ForecastPoint

// Forecast is either a series or an error object. Error, when set, is
// emitted verbatim in place of the series.
type Forecast struct {
	Series ForecastSeries
	Error  json.RawMessage
}

// Failed reports whether the forecast carries an error object.
func (f Forecast) Failed() bool {
	return len(f.Error) > 0
}

func (f Forecast) MarshalJSON() ([]byte, error) {
	if f.Failed() {
		return f.Error, nil
	}
	if f.Series == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f.Series)
}

// ForecastResponse is the subset of the meteoblue basic-day package used here.
// Error is kept loosely typed; the provider uses a boolean but the field is
// only ever tested for truthiness.
type ForecastResponse struct {
	Error   any `json:"error,omitempty"`
	DataDay *struct {
		Time          []string   `json:"time"`
		Precipitation []*float64 `json:"precipitation"`
	} `json:"data_day,omitempty"`
}
