package store

import (
	"context"
	"errors"
	"sort"

	"github.com/kjstillabower/tahmo-weather-service/internal/models"
)

// ErrStationNotFound is returned by Get when no stored station has the code.
var ErrStationNotFound = errors.New("station not found")

// StationStore holds the active station list. Refresh replaces the whole set
// atomically: concurrent readers see the old set or the new one, never a mix.
type StationStore interface {
	Refresh(ctx context.Context, stations []models.RawStation) error
	Get(ctx context.Context, code string) (models.Station, error)
	List(ctx context.Context) ([]models.Station, error)
}

// ActiveStations keeps stations with status 1, projects them onto the stored
// shape and sorts them by code ascending.
func ActiveStations(raw []models.RawStation) []models.Station {
	out := make([]models.Station, 0, len(raw))
	for _, r := range raw {
		if r.Status != models.StationActive {
			continue
		}
		out = append(out, r.Project())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
