package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kjstillabower/tahmo-weather-service/internal/models"
)

const createStationsSQL = `
CREATE TABLE IF NOT EXISTS stations (
	code                TEXT PRIMARY KEY,
	status              INTEGER NOT NULL,
	name                TEXT NOT NULL,
	latitude            REAL NOT NULL,
	longitude           REAL NOT NULL,
	altitude            REAL NOT NULL,
	installation_height REAL NOT NULL,
	timezone            TEXT NOT NULL
)`

const stationColumns = "code, status, name, latitude, longitude, altitude, installation_height, timezone"

// SQLiteStore keeps stations in a SQLite table. Refresh swaps the rows inside
// one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and ensures the schema.
// path may be a plain file path or a "file:" URI.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, createStationsSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create stations table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func buildDSN(path string) (string, error) {
	// busy_timeout covers the refresh transaction; WAL lets readers proceed during it.
	params := []string{"_busy_timeout=5000", "_journal_mode=WAL"}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// Refresh implements StationStore.Refresh.
func (s *SQLiteStore) Refresh(ctx context.Context, stations []models.RawStation) error {
	active := ActiveStations(stations)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin refresh: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM stations"); err != nil {
		return fmt.Errorf("clear stations: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO stations ("+stationColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, st := range active {
		if _, err := stmt.ExecContext(ctx, st.Code, st.Status, st.Name, st.Latitude, st.Longitude, st.Altitude, st.InstallationHeight, st.Timezone); err != nil {
			return fmt.Errorf("insert station %s: %w", st.Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit refresh: %w", err)
	}
	return nil
}

// Get implements StationStore.Get.
func (s *SQLiteStore) Get(ctx context.Context, code string) (models.Station, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+stationColumns+" FROM stations WHERE code = ?", code)
	st, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Station{}, fmt.Errorf("%w: %s", ErrStationNotFound, code)
	}
	if err != nil {
		return models.Station{}, fmt.Errorf("get station %s: %w", code, err)
	}
	return st, nil
}

// List implements StationStore.List.
func (s *SQLiteStore) List(ctx context.Context) ([]models.Station, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+stationColumns+" FROM stations ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	defer rows.Close()

	out := []models.Station{}
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	return out, nil
}

// Ping checks the database connection. Used for health checks.
func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

// Close closes the database. Call during shutdown.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStation(r rowScanner) (models.Station, error) {
	var st models.Station
	err := r.Scan(&st.Code, &st.Status, &st.Name, &st.Latitude, &st.Longitude, &st.Altitude, &st.InstallationHeight, &st.Timezone)
	return st, err
}
