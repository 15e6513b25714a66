package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/tahmo-weather-service/internal/client"
	"github.com/kjstillabower/tahmo-weather-service/internal/models"
	"github.com/kjstillabower/tahmo-weather-service/internal/observability"
	"github.com/kjstillabower/tahmo-weather-service/internal/store"
)

type mockStore struct {
	stations map[string]models.Station
	err      error
}

func (m *mockStore) Refresh(ctx context.Context, raw []models.RawStation) error {
	m.stations = make(map[string]models.Station)
	for _, s := range store.ActiveStations(raw) {
		m.stations[s.Code] = s
	}
	return nil
}

func (m *mockStore) Get(ctx context.Context, code string) (models.Station, error) {
	if m.err != nil {
		return models.Station{}, m.err
	}
	s, ok := m.stations[code]
	if !ok {
		return models.Station{}, store.ErrStationNotFound
	}
	return s, nil
}

func (m *mockStore) List(ctx context.Context) ([]models.Station, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.Station, 0, len(m.stations))
	for _, s := range m.stations {
		out = append(out, s)
	}
	return out, nil
}

type mockStationClient struct {
	resp  models.MeasurementsResponse
	err   error
	calls atomic.Int32
}

func (m *mockStationClient) FetchMeasurements(ctx context.Context, code string) (models.MeasurementsResponse, error) {
	m.calls.Add(1)
	return m.resp, m.err
}

func (m *mockStationClient) FetchStations(ctx context.Context) ([]models.RawStation, error) {
	return nil, errors.New("not used")
}

type mockForecastClient struct {
	body  json.RawMessage
	err   error
	calls atomic.Int32
	lat   float64
	lon   float64
}

func (m *mockForecastClient) FetchForecast(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	m.calls.Add(1)
	m.lat, m.lon = lat, lon
	return m.body, m.err
}

var nairobi = models.Station{
	Code:               "TA00001",
	Status:             1,
	Name:               "Nairobi Central",
	Latitude:           -1.2921,
	Longitude:          36.8219,
	Altitude:           1795,
	InstallationHeight: 2,
	Timezone:           "Africa/Nairobi",
}

const dailyForecast = `{"data_day":{"time":["2024-01-10","2024-01-11"],"precipitation":[0.4,2.1]}}`

func newTestService(measurements models.MeasurementsResponse, forecast json.RawMessage) (*StationService, *mockStationClient, *mockForecastClient) {
	st := &mockStore{stations: map[string]models.Station{nairobi.Code: nairobi}}
	sc := &mockStationClient{resp: measurements}
	fc := &mockForecastClient{body: forecast}
	return NewStationService(st, sc, fc), sc, fc
}

func nairobiMeasurements(lastReport string) models.MeasurementsResponse {
	return measurementsResponse(defaultColumns,
		row("2024-01-10T06:00:00", "pr", 2.0),
		row("2024-01-10T07:00:00", "te", 22.5),
		row(lastReport, "pr", 1.5),
	)
}

func TestPrepare_MergesObservationsAndForecast(t *testing.T) {
	svc, sc, fc := newTestService(nairobiMeasurements("2024-01-10T08:00:00"), json.RawMessage(dailyForecast))

	got, err := svc.Prepare(context.Background(), "TA00001")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if sc.calls.Load() != 1 || fc.calls.Load() != 1 {
		t.Errorf("upstream calls = %d/%d, want 1/1", sc.calls.Load(), fc.calls.Load())
	}
	if fc.lat != nairobi.Latitude || fc.lon != nairobi.Longitude {
		t.Errorf("forecast coords = %v,%v, want station coords", fc.lat, fc.lon)
	}

	obs := got.Observations
	if obs.Name != "Nairobi Central" || obs.Altitude != 1795 || obs.InstallationHeight != 2 || obs.Timezone != "Africa/Nairobi" {
		t.Errorf("station fields not merged: %+v", obs)
	}
	if obs.Values["pr"] != 3.5 || obs.Values["te"] != 22.5 || obs.Values["ws"] != 0 {
		t.Errorf("Values = %v", obs.Values)
	}
	if obs.LastReport != "2024-01-10T08:00:00" {
		t.Errorf("LastReport = %q", obs.LastReport)
	}
	if obs.UTCReportedTime != "Jan 10, 2024 (UTC)" {
		t.Errorf("UTCReportedTime = %q, want Jan 10, 2024 (UTC)", obs.UTCReportedTime)
	}
	if obs.StationLocalReportedTime != "Jan 10, 2024 (EAT)" {
		t.Errorf("StationLocalReportedTime = %q, want Jan 10, 2024 (EAT)", obs.StationLocalReportedTime)
	}
	if got.Forecasts.Failed() || len(got.Forecasts.Series) != 2 {
		t.Errorf("Forecasts = %+v, want two-day series", got.Forecasts)
	}
}

func TestPrepare_MeasurementCodeWins(t *testing.T) {
	resp := measurementsResponse(defaultColumns,
		[]any{"2024-01-10T08:00:00", "TA00001-X", "te", 20.0, 1.0},
	)
	svc, _, _ := newTestService(resp, json.RawMessage(dailyForecast))

	got, err := svc.Prepare(context.Background(), "TA00001")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if got.Observations.Code != "TA00001-X" {
		t.Errorf("Code = %q, want measurement code", got.Observations.Code)
	}
}

func TestPrepare_UnknownCodeSkipsUpstream(t *testing.T) {
	svc, sc, fc := newTestService(nairobiMeasurements("2024-01-10T08:00:00"), json.RawMessage(dailyForecast))

	_, err := svc.Prepare(context.Background(), "TA99999")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Prepare() error = %v, want ErrNotFound", err)
	}
	if !errors.Is(err, store.ErrStationNotFound) {
		t.Errorf("Prepare() error = %v, want wrapped ErrStationNotFound", err)
	}
	if sc.calls.Load() != 0 || fc.calls.Load() != 0 {
		t.Errorf("upstream calls = %d/%d, want 0/0", sc.calls.Load(), fc.calls.Load())
	}
}

func TestPrepare_StoreFailureIsNotNotFound(t *testing.T) {
	svc := NewStationService(&mockStore{err: errors.New("disk gone")}, &mockStationClient{}, &mockForecastClient{})
	_, err := svc.Prepare(context.Background(), "TA00001")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Prepare() error = %v, want non-NotFound failure", err)
	}
}

func TestPrepare_MeasurementFailures(t *testing.T) {
	tests := []struct {
		name  string
		resp  models.MeasurementsResponse
		err   error
		cause error
	}{
		{"upstream failure", models.MeasurementsResponse{}, client.ErrUpstreamFailure, client.ErrUpstreamFailure},
		{"invalid credentials", models.MeasurementsResponse{}, client.ErrInvalidCredentials, client.ErrInvalidCredentials},
		{"empty series", models.MeasurementsResponse{}, nil, ErrDataUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, sc, fc := newTestService(tt.resp, json.RawMessage(dailyForecast))
			sc.err = tt.err

			_, err := svc.Prepare(context.Background(), "TA00001")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Prepare() error = %v, want ErrNotFound", err)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("Prepare() error = %v, want cause %v", err, tt.cause)
			}
			if fc.calls.Load() != 0 {
				t.Errorf("forecast calls = %d, want 0", fc.calls.Load())
			}
		})
	}
}

func TestPrepare_MissingTimezoneIsNotFound(t *testing.T) {
	svc, _, _ := newTestService(nairobiMeasurements("2024-01-10T08:00:00"), json.RawMessage(dailyForecast))
	st := svc.store.(*mockStore)
	s := st.stations["TA00001"]
	s.Timezone = ""
	st.stations["TA00001"] = s

	_, err := svc.Prepare(context.Background(), "TA00001")
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, ErrDataUnavailable) {
		t.Errorf("Prepare() error = %v, want ErrNotFound wrapping ErrDataUnavailable", err)
	}
}

func TestPrepare_ForecastErrorObjectPassesThrough(t *testing.T) {
	errBody := json.RawMessage(`{"error": true, "message": "invalid key"}`)
	svc, _, _ := newTestService(nairobiMeasurements("2024-01-10T08:00:00"), errBody)

	core, logs := observer.New(zapcore.WarnLevel)
	ctx := observability.WithLogger(context.Background(), zap.New(core))

	got, err := svc.Prepare(ctx, "TA00001")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if string(got.Forecasts.Error) != string(errBody) {
		t.Errorf("Forecasts.Error = %s, want %s", got.Forecasts.Error, errBody)
	}
	if got.Observations.Values == nil || got.Observations.Name == "" {
		t.Errorf("Observations not populated: %+v", got.Observations)
	}
	if logs.FilterMessage("forecast provider returned error").Len() != 1 {
		t.Errorf("expected one forecast warning, got %v", logs.All())
	}
}

func TestPrepare_ForecastFetchFailureIsEmbedded(t *testing.T) {
	tests := []struct {
		name string
		body json.RawMessage
		err  error
	}{
		{"transport error", nil, errors.New("request timeout: context deadline exceeded")},
		{"missing data_day", json.RawMessage(`{"metadata":{}}`), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, fc := newTestService(nairobiMeasurements("2024-01-10T08:00:00"), tt.body)
			fc.err = tt.err

			got, err := svc.Prepare(context.Background(), "TA00001")
			if err != nil {
				t.Fatalf("Prepare() error = %v, want forecast failure embedded", err)
			}
			if string(got.Forecasts.Error) != string(forecastUnavailable) {
				t.Errorf("Forecasts.Error = %s, want %s", got.Forecasts.Error, forecastUnavailable)
			}
		})
	}
}

func TestPrepare_ResponseShape(t *testing.T) {
	svc, _, _ := newTestService(nairobiMeasurements("2024-01-10T08:00:00"), json.RawMessage(dailyForecast))
	got, err := svc.Prepare(context.Background(), "TA00001")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	out, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded struct {
		Observations map[string]any `json:"observations"`
		Forecasts    [][]any        `json:"forecasts"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v (%s)", err, out)
	}
	for _, key := range []string{"status", "name", "latitude", "longitude", "altitude", "installation_height",
		"timezone", "values", "last_report", "code", "station_local_reported_time", "utc_reported_time"} {
		if _, ok := decoded.Observations[key]; !ok {
			t.Errorf("observations missing %q", key)
		}
	}
	if len(decoded.Forecasts) != 2 || decoded.Forecasts[1][0] != "2024-01-11" || decoded.Forecasts[1][1] != 2.1 {
		t.Errorf("forecasts = %v", decoded.Forecasts)
	}
}

func TestListStations(t *testing.T) {
	svc, _, _ := newTestService(models.MeasurementsResponse{}, nil)
	got, err := svc.ListStations(context.Background())
	if err != nil {
		t.Fatalf("ListStations() error = %v", err)
	}
	if len(got) != 1 || got[0].Code != "TA00001" {
		t.Errorf("ListStations() = %+v", got)
	}

	failing := NewStationService(&mockStore{err: errors.New("boom")}, &mockStationClient{}, &mockForecastClient{})
	if _, err := failing.ListStations(context.Background()); err == nil {
		t.Error("ListStations() expected error from store")
	}
}

func TestReportedTimes(t *testing.T) {
	tests := []struct {
		name       string
		lastReport string
		tz         string
		wantLocal  string
		wantUTC    string
	}{
		{"nairobi morning", "2024-01-10T08:00:00", "Africa/Nairobi", "Jan 10, 2024 (EAT)", "Jan 10, 2024 (UTC)"},
		{"nairobi after midnight", "2024-01-10T01:00:00", "Africa/Nairobi", "Jan 09, 2024 (EAT)", "Jan 10, 2024 (UTC)"},
		{"offset is ignored", "2024-01-10T01:00:00Z", "Africa/Nairobi", "Jan 09, 2024 (EAT)", "Jan 10, 2024 (UTC)"},
		{"west of utc", "2024-03-05T22:30:00", "America/New_York", "Mar 06, 2024 (EST)", "Mar 05, 2024 (UTC)"},
		{"utc station", "2024-01-10T08:00:00+03:00", "UTC", "Jan 10, 2024 (UTC)", "Jan 10, 2024 (UTC)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, utc, err := ReportedTimes(tt.lastReport, tt.tz)
			if err != nil {
				t.Fatalf("ReportedTimes() error = %v", err)
			}
			if local != tt.wantLocal {
				t.Errorf("local = %q, want %q", local, tt.wantLocal)
			}
			if utc != tt.wantUTC {
				t.Errorf("utc = %q, want %q", utc, tt.wantUTC)
			}
		})
	}
}

func TestReportedTimes_Errors(t *testing.T) {
	tests := []struct {
		name       string
		lastReport string
		tz         string
	}{
		{"empty timezone", "2024-01-10T08:00:00", ""},
		{"unknown timezone", "2024-01-10T08:00:00", "Mars/Olympus"},
		{"bad timestamp", "yesterday", "Africa/Nairobi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ReportedTimes(tt.lastReport, tt.tz); !errors.Is(err, ErrDataUnavailable) {
				t.Errorf("ReportedTimes() error = %v, want ErrDataUnavailable", err)
			}
		})
	}
}
