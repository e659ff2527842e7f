package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

// SQLiteStore persists forecast history in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	clock  clockwork.Clock
	logger zerolog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string, clock clockwork.Clock, logger zerolog.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection: each :memory: connection is its own database, and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	s := NewSQLiteStore(db, clock, logger)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewSQLiteStore wraps an already-open database. Call Migrate before use.
func NewSQLiteStore(db *sql.DB, clock clockwork.Clock, logger zerolog.Logger) *SQLiteStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SQLiteStore{
		db:     db,
		clock:  clock,
		logger: logger.With().Str("component", "sqlite_store").Logger(),
	}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, result weather.EnsembleResult) (weather.ForecastRecord, error) {
	rec := weather.ForecastRecord{
		ID:        uuid.NewString(),
		CreatedAt: s.clock.Now().UTC(),
		Result:    result,
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return weather.ForecastRecord{}, fmt.Errorf("encode result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO forecasts (
			id, latitude, longitude, location_name, event_date,
			precipitation_probability, precipitation_intensity_mm,
			summary, dataset, issued_at, created_at,
			overall_confidence, result_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		result.Location.Latitude,
		result.Location.Longitude,
		result.Location.Name,
		result.EventDate,
		result.Probability,
		result.PrecipitationMM,
		result.Summary,
		result.Dataset,
		result.IssuedAt.UTC().Format(time.RFC3339Nano),
		rec.CreatedAt.Format(time.RFC3339Nano),
		string(result.Confidence),
		string(payload),
	)
	if err != nil {
		return weather.ForecastRecord{}, fmt.Errorf("insert forecast: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (weather.ForecastRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at, result_json FROM forecasts WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.ForecastRecord{}, ErrNotFound
	}
	return rec, err
}

// History returns up to limit records for a location, newest first.
func (s *SQLiteStore) History(ctx context.Context, loc weather.Location, limit int) ([]weather.ForecastRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, result_json FROM forecasts
		WHERE latitude = ? AND longitude = ?
		ORDER BY seq DESC
		LIMIT ?`,
		loc.Latitude, loc.Longitude, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []weather.ForecastRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Statistics(ctx context.Context) (weather.Statistics, error) {
	var (
		stats   weather.Statistics
		avgProb sql.NullFloat64
		avgMM   sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			AVG(precipitation_probability),
			AVG(precipitation_intensity_mm),
			COUNT(DISTINCT latitude || ',' || longitude)
		FROM forecasts`,
	).Scan(&stats.TotalForecasts, &avgProb, &avgMM, &stats.UniqueLocations)
	if err != nil {
		return weather.Statistics{}, fmt.Errorf("query statistics: %w", err)
	}

	stats.AvgProbability = roundTo(avgProb.Float64, 3)
	stats.AvgPrecipitationMM = roundTo(avgMM.Float64, 2)
	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (weather.ForecastRecord, error) {
	var (
		rec       weather.ForecastRecord
		createdAt string
		payload   string
	)
	if err := sc.Scan(&rec.ID, &createdAt, &payload); err != nil {
		return weather.ForecastRecord{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return weather.ForecastRecord{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	rec.CreatedAt = t
	if err := json.Unmarshal([]byte(payload), &rec.Result); err != nil {
		return weather.ForecastRecord{}, fmt.Errorf("decode result for %s: %w", rec.ID, err)
	}
	return rec, nil
}
