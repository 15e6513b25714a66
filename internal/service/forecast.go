package service

import (
	"encoding/json"
	"fmt"

	"github.com/kjstillabower/tahmo-weather-service/internal/models"
)

// forecastUnavailable is embedded in place of the series when the forecast
// could not be fetched or decoded.
var forecastUnavailable = json.RawMessage(`{"error":true,"message":"Forecast data not available"}`)

// ParseForecast reshapes a meteoblue basic-day body into a ForecastSeries.
// A body whose "error" field is truthy is returned unchanged as the forecast's
// error object. Missing data_day arrays are ErrDataUnavailable.
func ParseForecast(body json.RawMessage) (models.Forecast, error) {
	var resp models.ForecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Forecast{}, fmt.Errorf("%w: decode forecast: %v", ErrDataUnavailable, err)
	}
	if truthy(resp.Error) {
		return models.Forecast{Error: body}, nil
	}
	if resp.DataDay == nil || resp.DataDay.Time == nil || resp.DataDay.Precipitation == nil {
		return models.Forecast{}, fmt.Errorf("%w: forecast data_day.time or data_day.precipitation missing", ErrDataUnavailable)
	}

	days := resp.DataDay.Time
	precip := resp.DataDay.Precipitation
	n := min(len(days), len(precip))
	series := make(models.ForecastSeries, 0, n)
	for i := 0; i < n; i++ {
		series = append(series, models.ForecastPoint{Date: days[i], Precipitation: precip[i]})
	}
	return models.Forecast{Series: series}, nil
}

// truthy follows JSON-ish truthiness: false, 0, "", null and empty containers are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
