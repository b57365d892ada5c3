package settings

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"genfity-floor-services/internal/geofence"
	"genfity-floor-services/internal/preorder"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS merchant_geofences (
	merchant_id INTEGER PRIMARY KEY,
	latitude REAL,
	longitude REAL,
	radius_meters REAL NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS merchant_preorder_windows (
	merchant_id INTEGER PRIMARY KEY,
	enabled INTEGER NOT NULL DEFAULT 0,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	days_of_week TEXT NOT NULL DEFAULT '',
	timezone TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// SQLiteStore keeps settings in a local file, for floor devices that run
// the service next to the screen.
type SQLiteStore struct {
	db       *sql.DB
	defaults Defaults
}

func OpenSQLite(ctx context.Context, path string, defaults Defaults) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, defaults: defaults}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Geofence(ctx context.Context, merchantID int64) (geofence.Fence, error) {
	var (
		lat, lon sql.NullFloat64
		fence    geofence.Fence
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, radius_meters FROM merchant_geofences WHERE merchant_id = ?`,
		merchantID,
	).Scan(&lat, &lon, &fence.RadiusMeters)
	if errors.Is(err, sql.ErrNoRows) {
		return s.defaults.fence(), nil
	}
	if err != nil {
		return geofence.Fence{}, err
	}
	if lat.Valid {
		fence.Latitude = &lat.Float64
	}
	if lon.Valid {
		fence.Longitude = &lon.Float64
	}
	return fence, nil
}

func (s *SQLiteStore) SaveGeofence(ctx context.Context, merchantID int64, fence geofence.Fence) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchant_geofences (merchant_id, latitude, longitude, radius_meters, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(merchant_id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			radius_meters = excluded.radius_meters,
			updated_at = excluded.updated_at
	`, merchantID, nullFloat(fence.Latitude), nullFloat(fence.Longitude), fence.RadiusMeters)
	return err
}

func (s *SQLiteStore) ClearGeofence(ctx context.Context, merchantID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM merchant_geofences WHERE merchant_id = ?`, merchantID)
	return err
}

func (s *SQLiteStore) PreOrderWindow(ctx context.Context, merchantID int64) (preorder.Window, error) {
	var (
		w                  preorder.Window
		enabled            int
		startTime, endTime string
		days               string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled, start_time, end_time, days_of_week, timezone FROM merchant_preorder_windows WHERE merchant_id = ?`,
		merchantID,
	).Scan(&enabled, &startTime, &endTime, &days, &w.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return preorder.Disabled(), nil
	}
	if err != nil {
		return preorder.Window{}, err
	}
	w.Enabled = enabled != 0
	if w.Start, err = preorder.ParseClock(startTime); err != nil {
		return preorder.Window{}, err
	}
	if w.End, err = preorder.ParseClock(endTime); err != nil {
		return preorder.Window{}, err
	}
	if w.DaysOfWeek, err = parseDays(days); err != nil {
		return preorder.Window{}, err
	}
	return cloneWindow(w), nil
}

func (s *SQLiteStore) SavePreOrderWindow(ctx context.Context, merchantID int64, w preorder.Window) error {
	enabled := 0
	if w.Enabled {
		enabled = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchant_preorder_windows (merchant_id, enabled, start_time, end_time, days_of_week, timezone, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(merchant_id) DO UPDATE SET
			enabled = excluded.enabled,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			days_of_week = excluded.days_of_week,
			timezone = excluded.timezone,
			updated_at = excluded.updated_at
	`, merchantID, enabled, w.Start.String(), w.End.String(), formatDays(w.DaysOfWeek), w.Timezone)
	return err
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func formatDays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

func parseDays(value string) ([]int, error) {
	if strings.TrimSpace(value) == "" {
		return []int{}, nil
	}
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
