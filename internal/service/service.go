package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/kjstillabower/tahmo-weather-service/internal/client"
	"github.com/kjstillabower/tahmo-weather-service/internal/models"
	"github.com/kjstillabower/tahmo-weather-service/internal/observability"
	"github.com/kjstillabower/tahmo-weather-service/internal/store"
)

var (
	// ErrNotFound covers an unknown station code and any failure to obtain its
	// measurements. Callers that need the cause can test the wrapped chain.
	ErrNotFound = errors.New("no data available")

	// ErrDataUnavailable is returned when an upstream body lacks the expected fields.
	ErrDataUnavailable = errors.New("data unavailable")
)

// reportDateLayout renders as "Jan 10, 2024".
const reportDateLayout = "Jan 02, 2006"

// StationService merges cached station metadata with live TAHMO measurements
// and the meteoblue forecast.
type StationService struct {
	store     store.StationStore
	stations  client.StationClient
	forecasts client.ForecastClient
}

// NewStationService creates a StationService over the given store and upstream clients.
func NewStationService(st store.StationStore, stations client.StationClient, forecasts client.ForecastClient) *StationService {
	return &StationService{
		store:     st,
		stations:  stations,
		forecasts: forecasts,
	}
}

// Prepare builds the observations and forecast for one station code.
// An unknown code returns ErrNotFound before any upstream call is made.
// Measurement failures also return ErrNotFound; forecast failures do not
// abort the call and are embedded as an error object instead.
func (s *StationService) Prepare(ctx context.Context, code string) (models.StationData, error) {
	logger := observability.LoggerFromContext(ctx)
	start := time.Now()

	station, err := s.store.Get(ctx, code)
	if errors.Is(err, store.ErrStationNotFound) {
		return models.StationData{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return models.StationData{}, fmt.Errorf("load station %s: %w", code, err)
	}

	measurements, err := s.measurements(ctx, code)
	if err != nil {
		return models.StationData{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var obs models.ObservationPayload
	obs.ApplyStation(station)
	obs.ApplyMeasurements(measurements)

	local, utc, err := ReportedTimes(measurements.LastReport, station.Timezone)
	if err != nil {
		return models.StationData{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	obs.StationLocalReportedTime = local
	obs.UTCReportedTime = utc

	forecast := s.forecast(ctx, station)

	logger.Debug("station data prepared",
		zap.String("station", code),
		zap.String("last_report", measurements.LastReport),
		zap.Bool("forecast_error", forecast.Failed()),
		zap.Duration("duration", time.Since(start)))

	return models.StationData{Observations: obs, Forecasts: forecast}, nil
}

// ListStations returns every stored station sorted by code.
func (s *StationService) ListStations(ctx context.Context) ([]models.Station, error) {
	stations, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	return stations, nil
}

func (s *StationService) measurements(ctx context.Context, code string) (models.MeasurementSet, error) {
	raw, err := s.stations.FetchMeasurements(ctx, code)
	if err != nil {
		return models.MeasurementSet{}, err
	}
	set, err := AggregateMeasurements(raw)
	if err != nil {
		return models.MeasurementSet{}, fmt.Errorf("measurements for %s: %w", code, err)
	}
	return set, nil
}

func (s *StationService) forecast(ctx context.Context, station models.Station) models.Forecast {
	logger := observability.LoggerFromContext(ctx)

	body, err := s.forecasts.FetchForecast(ctx, station.Latitude, station.Longitude)
	if err == nil {
		var f models.Forecast
		f, err = ParseForecast(body)
		if err == nil {
			if f.Failed() {
				observability.ForecastErrorsTotal.Inc()
				logger.Warn("forecast provider returned error", zap.String("station", station.Code), zap.ByteString("body", f.Error))
			}
			return f
		}
	}
	observability.ForecastErrorsTotal.Inc()
	logger.Warn("forecast unavailable", zap.String("station", station.Code), zap.Error(err))
	return models.Forecast{Error: forecastUnavailable}
}

// ReportedTimes formats lastReport for display. The timestamp's own offset is
// dropped and its wall-clock reading is interpreted twice: in tz and in UTC.
// The station-local string is the tz interpretation converted to UTC, dated and
// labelled with the tz abbreviation, e.g. "Jan 10, 2024 (EAT)". The UTC string
// is the UTC interpretation, e.g. "Jan 10, 2024 (UTC)".
func ReportedTimes(lastReport, tz string) (local, utc string, err error) {
	wall, err := parseWallClock(lastReport)
	if err != nil {
		return "", "", err
	}
	if tz == "" {
		return "", "", fmt.Errorf("%w: station has no timezone", ErrDataUnavailable)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", "", fmt.Errorf("%w: unknown timezone %q", ErrDataUnavailable, tz)
	}

	localInstant := time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc)
	abbr, _ := localInstant.Zone()

	local = fmt.Sprintf("%s (%s)", localInstant.UTC().Format(reportDateLayout), abbr)
	utc = fmt.Sprintf("%s (UTC)", wall.Format(reportDateLayout))
	return local, utc, nil
}

var wallClockLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseWallClock parses an ISO-8601 timestamp and returns its wall-clock
// reading in UTC, ignoring any offset it carried.
func parseWallClock(s string) (time.Time, error) {
	for _, layout := range wallClockLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w: unparseable last_report %q", ErrDataUnavailable, s)
}
