package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kjstillabower/tahmo-weather-service/internal/models"
	"github.com/kjstillabower/tahmo-weather-service/internal/observability"
)

// StationClient reads station assets and measurements from TAHMO.
type StationClient interface {
	FetchMeasurements(ctx context.Context, code string) (models.MeasurementsResponse, error)
	FetchStations(ctx context.Context) ([]models.RawStation, error)
}

// ForecastClient reads the daily forecast for a coordinate pair.
type ForecastClient interface {
	FetchForecast(ctx context.Context, latitude, longitude float64) (json.RawMessage, error)
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUpstreamFailure    = errors.New("upstream failure")
)

// TahmoClient calls the TAHMO datahub with HTTP basic auth.
type TahmoClient struct {
	username string
	password string
	baseURL  *url.URL
	client   *http.Client
}

// NewTahmoClient returns a client for baseURL (e.g. https://datahub.tahmo.org/services/).
// timeout bounds each request; expiry surfaces as a request failure.
func NewTahmoClient(username, password, baseURL string, timeout time.Duration) (*TahmoClient, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: TAHMO username and password are required", ErrInvalidCredentials)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid TAHMO API URL: %w", err)
	}
	return &TahmoClient{
		username: username,
		password: password,
		baseURL:  u,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// FetchMeasurements returns the controlled measurements of one station.
// Any status other than 200 is an ErrUpstreamFailure.
func (c *TahmoClient) FetchMeasurements(ctx context.Context, code string) (models.MeasurementsResponse, error) {
	var out models.MeasurementsResponse
	endpoint := c.baseURL.JoinPath("measurements/v2/stations", code, "measurements/controlled")
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return models.MeasurementsResponse{}, fmt.Errorf("fetch measurements for %s: %w", code, err)
	}
	return out, nil
}

// FetchStations returns every station asset, active or not.
func (c *TahmoClient) FetchStations(ctx context.Context) ([]models.RawStation, error) {
	var out models.StationsResponse
	if err := c.getJSON(ctx, c.baseURL.JoinPath("assets/v2/stations"), &out); err != nil {
		return nil, fmt.Errorf("fetch stations: %w", err)
	}
	return out.Data, nil
}

func (c *TahmoClient) getJSON(ctx context.Context, endpoint *url.URL, dst any) error {
	req, err := newRequest(ctx, endpoint)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)

	body, status, err := do(c.client, req, observability.ProviderTahmo)
	if err != nil {
		return err
	}
	if err := checkStatus(status); err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues(observability.ProviderTahmo, string(CategorizeError(err))).Inc()
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		observability.UpstreamErrorsTotal.WithLabelValues(observability.ProviderTahmo, string(ErrorCategoryParsing)).Inc()
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// checkStatus accepts exactly 200. 1xx and other 2xx codes are treated as failures.
func checkStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidCredentials, status)
	default:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, status)
	}
}

// MeteoblueClient calls the meteoblue basic-1h_basic-day package.
type MeteoblueClient struct {
	apiKey  string
	baseURL *url.URL
	client  *http.Client
}

// NewMeteoblueClient returns a forecast client for baseURL.
func NewMeteoblueClient(apiKey, baseURL string, timeout time.Duration) (*MeteoblueClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: forecast API key is required", ErrInvalidCredentials)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid forecast API URL: %w", err)
	}
	return &MeteoblueClient{
		apiKey:  apiKey,
		baseURL: u,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// FetchForecast returns the decoded forecast body whatever the HTTP status, so
// provider error objects such as {"error": true, ...} reach the caller intact.
// Only transport failures and non-JSON bodies are errors.
func (c *MeteoblueClient) FetchForecast(ctx context.Context, latitude, longitude float64) (json.RawMessage, error) {
	endpoint := *c.baseURL
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(longitude, 'f', -1, 64))
	params.Set("apikey", c.apiKey)
	endpoint.RawQuery = params.Encode()

	req, err := newRequest(ctx, &endpoint)
	if err != nil {
		return nil, err
	}
	body, _, err := do(c.client, req, observability.ProviderMeteoblue)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	if !json.Valid(body) {
		observability.UpstreamErrorsTotal.WithLabelValues(observability.ProviderMeteoblue, string(ErrorCategoryParsing)).Inc()
		return nil, fmt.Errorf("fetch forecast: parse response: invalid JSON body")
	}
	return json.RawMessage(body), nil
}

func newRequest(ctx context.Context, endpoint *url.URL) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}

// do performs req, records call metrics for provider and returns the body and status.
func do(hc *http.Client, req *http.Request, provider string) ([]byte, int, error) {
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(provider, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(provider, "error").Observe(duration)

		// Drop the query so the forecast API key never reaches logs.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			redacted := *req.URL
			redacted.RawQuery = ""
			urlErr.URL = redacted.String()
		}

		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || (errors.As(err, &netErr) && netErr.Timeout()) {
			err = fmt.Errorf("request timeout: %w", err)
		} else {
			err = fmt.Errorf("http request failed: %w", err)
		}
		observability.UpstreamErrorsTotal.WithLabelValues(provider, string(CategorizeError(err))).Inc()
		return nil, 0, err
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(provider, status).Inc()
	observability.UpstreamDuration.WithLabelValues(provider, status).Observe(duration)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
