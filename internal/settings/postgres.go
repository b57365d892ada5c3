package settings

import (
	"context"
	"errors"

	"genfity-floor-services/internal/geofence"
	"genfity-floor-services/internal/preorder"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
	create table if not exists merchant_geofences (
		merchant_id bigint primary key,
		latitude double precision,
		longitude double precision,
		radius_meters double precision not null,
		updated_at timestamptz not null default now()
	);
	create table if not exists merchant_preorder_windows (
		merchant_id bigint primary key,
		enabled boolean not null default false,
		start_time text not null,
		end_time text not null,
		days_of_week int[] not null default '{}',
		timezone text not null default '',
		updated_at timestamptz not null default now()
	);
`

type PostgresStore struct {
	DB       *pgxpool.Pool
	Defaults Defaults
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, postgresSchema)
	return err
}

func (s *PostgresStore) Geofence(ctx context.Context, merchantID int64) (geofence.Fence, error) {
	var fence geofence.Fence
	err := s.DB.QueryRow(ctx, `
		select latitude, longitude, radius_meters
		from merchant_geofences
		where merchant_id = $1
	`, merchantID).Scan(&fence.Latitude, &fence.Longitude, &fence.RadiusMeters)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.Defaults.fence(), nil
	}
	if err != nil {
		return geofence.Fence{}, err
	}
	return fence, nil
}

func (s *PostgresStore) SaveGeofence(ctx context.Context, merchantID int64, fence geofence.Fence) error {
	_, err := s.DB.Exec(ctx, `
		insert into merchant_geofences (merchant_id, latitude, longitude, radius_meters, updated_at)
		values ($1, $2, $3, $4, now())
		on conflict (merchant_id) do update
		set latitude = excluded.latitude,
		    longitude = excluded.longitude,
		    radius_meters = excluded.radius_meters,
		    updated_at = now()
	`, merchantID, fence.Latitude, fence.Longitude, fence.RadiusMeters)
	return err
}

func (s *PostgresStore) ClearGeofence(ctx context.Context, merchantID int64) error {
	_, err := s.DB.Exec(ctx, `delete from merchant_geofences where merchant_id = $1`, merchantID)
	return err
}

func (s *PostgresStore) PreOrderWindow(ctx context.Context, merchantID int64) (preorder.Window, error) {
	var (
		w          preorder.Window
		startTime  string
		endTime    string
		daysOfWeek []int32
	)
	err := s.DB.QueryRow(ctx, `
		select enabled, start_time, end_time, days_of_week, timezone
		from merchant_preorder_windows
		where merchant_id = $1
	`, merchantID).Scan(&w.Enabled, &startTime, &endTime, &daysOfWeek, &w.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return preorder.Disabled(), nil
	}
	if err != nil {
		return preorder.Window{}, err
	}
	if w.Start, err = preorder.ParseClock(startTime); err != nil {
		return preorder.Window{}, err
	}
	if w.End, err = preorder.ParseClock(endTime); err != nil {
		return preorder.Window{}, err
	}
	w.DaysOfWeek = make([]int, 0, len(daysOfWeek))
	for _, d := range daysOfWeek {
		w.DaysOfWeek = append(w.DaysOfWeek, int(d))
	}
	return cloneWindow(w), nil
}

func (s *PostgresStore) SavePreOrderWindow(ctx context.Context, merchantID int64, w preorder.Window) error {
	days := make([]int32, 0, len(w.DaysOfWeek))
	for _, d := range w.DaysOfWeek {
		days = append(days, int32(d))
	}
	_, err := s.DB.Exec(ctx, `
		insert into merchant_preorder_windows (merchant_id, enabled, start_time, end_time, days_of_week, timezone, updated_at)
		values ($1, $2, $3, $4, $5, $6, now())
		on conflict (merchant_id) do update
		set enabled = excluded.enabled,
		    start_time = excluded.start_time,
		    end_time = excluded.end_time,
		    days_of_week = excluded.days_of_week,
		    timezone = excluded.timezone,
		    updated_at = now()
	`, merchantID, w.Enabled, w.Start.String(), w.End.String(), days, w.Timezone)
	return err
}
