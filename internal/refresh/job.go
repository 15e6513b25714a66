package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/tahmo-weather-service/internal/lifecycle"
	"github.com/kjstillabower/tahmo-weather-service/internal/models"
	"github.com/kjstillabower/tahmo-weather-service/internal/observability"
	"github.com/kjstillabower/tahmo-weather-service/internal/store"
)

// StationLister is implemented by the TAHMO client. Declared here so the
// job does not depend on measurement fetching.
type StationLister interface {
	FetchStations(ctx context.Context) ([]models.RawStation, error)
}

// Job replaces the stored station list with the current TAHMO listing.
type Job struct {
	source StationLister
	store  store.StationStore
	logger *zap.Logger

	mu sync.Mutex
}

// NewJob creates a Job that reads from source and writes to st.
func NewJob(source StationLister, st store.StationStore, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{source: source, store: st, logger: logger}
}

// Run fetches the station listing and refreshes the store. There is no retry:
// on failure the previous store contents stay in place and the error is returned.
// Concurrent calls are serialized.
func (j *Job) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	err := j.run(ctx)
	duration := time.Since(start)
	observability.StationRefreshDuration.Observe(duration.Seconds())

	if err != nil {
		observability.StationRefreshTotal.WithLabelValues("error").Inc()
		j.logger.Error("station refresh failed", zap.Error(err), zap.Duration("duration", duration))
		return err
	}
	observability.StationRefreshTotal.WithLabelValues("success").Inc()
	observability.StationRefreshLastSuccess.SetToCurrentTime()
	lifecycle.SetStationsLoaded(true)
	return nil
}

// Initialize performs the startup refresh.
func (j *Job) Initialize(ctx context.Context) error {
	j.logger.Info("initial station refresh")
	if err := j.Run(ctx); err != nil {
		return fmt.Errorf("initial station refresh: %w", err)
	}
	return nil
}

func (j *Job) run(ctx context.Context) error {
	raw, err := j.source.FetchStations(ctx)
	if err != nil {
		return fmt.Errorf("fetch stations: %w", err)
	}
	if err := j.store.Refresh(ctx, raw); err != nil {
		return fmt.Errorf("store stations: %w", err)
	}
	active := len(store.ActiveStations(raw))
	observability.StationsStored.Set(float64(active))
	j.logger.Info("station refresh complete",
		zap.Int("received", len(raw)),
		zap.Int("active", active))
	return nil
}
