package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kjstillabower/tahmo-weather-service/internal/models"
)

var csvHeader = []string{"code", "status", "name", "latitude", "longitude", "altitude", "installation_height", "timezone"}

// CSVStore keeps stations in a single CSV file. Refresh writes a temp file in
// the same directory and renames it over the target, so readers opening the
// path always get a complete file.
type CSVStore struct {
	path string
}

// NewCSVStore returns a store backed by path. The parent directory is created if needed.
func NewCSVStore(path string) (*CSVStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return &CSVStore{path: path}, nil
}

// Refresh implements StationStore.Refresh.
func (s *CSVStore) Refresh(ctx context.Context, stations []models.RawStation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	active := ActiveStations(stations)

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".stations-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, st := range active {
		if err := w.Write(encodeRecord(st)); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write station %s: %w", st.Code, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Get implements StationStore.Get.
func (s *CSVStore) Get(ctx context.Context, code string) (models.Station, error) {
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

// List implements StationStore.List. A missing file is an empty store.
func (s *CSVStore) List(ctx context.Context) ([]models.Station, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Station{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open stations file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []models.Station{}, nil
		}
		return nil, fmt.Errorf("read stations header: %w", err)
	}
	var out []models.Station
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read stations file: %w", err)
		}
		st, err := decodeRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if out == nil {
		out = []models.Station{}
	}
	return out, nil
}

func encodeRecord(st models.Station) []string {
	return []string{
		st.Code,
		strconv.Itoa(st.Status),
		st.Name,
		formatFloat(st.Latitude),
		formatFloat(st.Longitude),
		formatFloat(st.Altitude),
		formatFloat(st.InstallationHeight),
		st.Timezone,
	}
}

func decodeRecord(rec []string) (models.Station, error) {
	status, err := strconv.Atoi(rec[1])
	if err != nil {
		return models.Station{}, fmt.Errorf("station %s: parse status: %w", rec[0], err)
	}
	floats := make([]float64, 4)
	for i, field := range rec[3:7] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return models.Station{}, fmt.Errorf("station %s: parse %s: %w", rec[0], csvHeader[3+i], err)
		}
		floats[i] = v
	}
	return models.Station{
		Code:               rec[0],
		Status:             status,
		Name:               rec[2],
		Latitude:           floats[0],
		Longitude:          floats[1],
		Altitude:           floats[2],
		InstallationHeight: floats[3],
		Timezone:           rec[7],
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
