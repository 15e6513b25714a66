package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/tahmo-weather-service/internal/models"
)

const snapshotKey = "tahmo:stations"

// MemcachedStore keeps the whole sorted station list as one JSON snapshot
// under a single key with no expiry. One Set is the swap, so several
// replicas can share the list written by whichever one runs the refresh.
type MemcachedStore struct {
	client *memcache.Client
}

// NewMemcachedStore creates a MemcachedStore. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedStore(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedStore, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedStore{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Refresh implements StationStore.Refresh.
func (s *MemcachedStore) Refresh(ctx context.Context, stations []models.RawStation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(ActiveStations(stations))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.client.Set(&memcache.Item{Key: snapshotKey, Value: raw}); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// Get implements StationStore.Get.
func (s *MemcachedStore) Get(ctx context.Context, code string) (models.Station, error) {
	stations, err := s.List(ctx)
	if err != nil {
		return models.Station{}, err
	}
	for _, st := range stations {
		if st.Code == code {
			return st, nil
		}
	}
	return models.Station{}, fmt.Errorf("%w: %s", ErrStationNotFound, code)
}

// List implements StationStore.List. A missing snapshot is an empty store.
func (s *MemcachedStore) List(ctx context.Context) ([]models.Station, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item, err := s.client.Get(snapshotKey)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return []models.Station{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var out []models.Station
	if err := json.Unmarshal(item.Value, &out); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if out == nil {
		out = []models.Station{}
	}
	return out, nil
}

// Ping checks if memcached is reachable. Used for health checks.
func (s *MemcachedStore) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (s *MemcachedStore) Close() error {
	return s.client.Close()
}
