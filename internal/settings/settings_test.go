package settings

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"genfity-floor-services/internal/geofence"
	"genfity-floor-services/internal/preorder"

	"github.com/go-redis/redis/v8"
)

func float(v float64) *float64 { return &v }

func TestGeofenceInputValidation(t *testing.T) {
	cases := []struct {
		name  string
		input GeofenceInput
		field string
	}{
		{name: "missing latitude", input: GeofenceInput{Longitude: float(8.8)}, field: "latitude"},
		{name: "latitude out of range", input: GeofenceInput{Latitude: float(91), Longitude: float(8.8)}, field: "latitude"},
		{name: "longitude out of range", input: GeofenceInput{Latitude: float(9.8), Longitude: float(-181)}, field: "longitude"},
		{name: "zero radius", input: GeofenceInput{Latitude: float(9.8), Longitude: float(8.8), RadiusMeters: float(0)}, field: "radius"},
		{name: "radius too large", input: GeofenceInput{Latitude: float(9.8), Longitude: float(8.8), RadiusMeters: float(20000)}, field: "radius"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.input.Fence(50)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}

	fence, err := GeofenceInput{Latitude: float(0), Longitude: float(0)}.Fence(75)
	if err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	if !fence.Configured() || fence.RadiusMeters != 75 {
		t.Fatalf("expected configured fence with default radius 75, got %+v", fence)
	}
}

func TestPreOrderWindowInputValidation(t *testing.T) {
	valid := PreOrderWindowInput{Enabled: true, StartTime: "22:00", EndTime: "02:00", DaysOfWeek: []int{5, 6}, Timezone: "Asia/Jakarta"}
	w, err := valid.Window()
	if err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	if w.Start != (preorder.Clock{Hour: 22}) || !reflect.DeepEqual(w.DaysOfWeek, []int{5, 6}) {
		t.Fatalf("unexpected window %+v", w)
	}

	cases := []struct {
		name  string
		input PreOrderWindowInput
		field string
	}{
		{name: "bad start", input: PreOrderWindowInput{StartTime: "25:00", EndTime: "10:00"}, field: "startTime"},
		{name: "bad end", input: PreOrderWindowInput{StartTime: "09:00", EndTime: "5pm"}, field: "endTime"},
		{name: "day out of range", input: PreOrderWindowInput{StartTime: "09:00", EndTime: "10:00", DaysOfWeek: []int{7}}, field: "daysOfWeek"},
		{name: "duplicate days", input: PreOrderWindowInput{StartTime: "09:00", EndTime: "10:00", DaysOfWeek: []int{1, 1}}, field: "daysOfWeek"},
		{name: "enabled without days", input: PreOrderWindowInput{Enabled: true, StartTime: "09:00", EndTime: "10:00", DaysOfWeek: []int{}}, field: "daysOfWeek"},
		{name: "bad timezone", input: PreOrderWindowInput{StartTime: "09:00", EndTime: "10:00", Timezone: "Mars/Olympus"}, field: "timezone"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.input.Window()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}

	disabled, err := PreOrderWindowInput{StartTime: "09:00", EndTime: "17:00"}.Window()
	if err != nil {
		t.Fatalf("days may be empty while disabled: %v", err)
	}
	if disabled.Enabled {
		t.Fatalf("expected disabled window")
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	fence, err := store.Geofence(ctx, 1)
	if err != nil {
		t.Fatalf("load geofence: %v", err)
	}
	if fence.Configured() || fence.RadiusMeters != 50 {
		t.Fatalf("expected unconfigured default fence, got %+v", fence)
	}

	if err := store.SaveGeofence(ctx, 1, geofence.NewFence(9.8965, 8.8583, 80)); err != nil {
		t.Fatalf("save geofence: %v", err)
	}
	fence, err = store.Geofence(ctx, 1)
	if err != nil {
		t.Fatalf("load geofence: %v", err)
	}
	if !fence.Configured() || *fence.Latitude != 9.8965 || fence.RadiusMeters != 80 {
		t.Fatalf("unexpected saved fence %+v", fence)
	}

	other, err := store.Geofence(ctx, 2)
	if err != nil {
		t.Fatalf("load other geofence: %v", err)
	}
	if other.Configured() {
		t.Fatalf("expected merchants to be isolated")
	}

	if err := store.ClearGeofence(ctx, 1); err != nil {
		t.Fatalf("clear geofence: %v", err)
	}
	fence, err = store.Geofence(ctx, 1)
	if err != nil {
		t.Fatalf("load geofence: %v", err)
	}
	if fence.Configured() {
		t.Fatalf("expected cleared fence")
	}

	w, err := store.PreOrderWindow(ctx, 1)
	if err != nil {
		t.Fatalf("load window: %v", err)
	}
	if w.Enabled {
		t.Fatalf("expected disabled default window")
	}

	saved := preorder.Window{Enabled: true, Start: preorder.MustClock("09:00"), End: preorder.MustClock("17:00"), DaysOfWeek: []int{5, 1, 3}, Timezone: "UTC"}
	if err := store.SavePreOrderWindow(ctx, 1, saved); err != nil {
		t.Fatalf("save window: %v", err)
	}
	w, err = store.PreOrderWindow(ctx, 1)
	if err != nil {
		t.Fatalf("load window: %v", err)
	}
	if !w.Enabled || w.End != preorder.MustClock("17:00") || w.Timezone != "UTC" {
		t.Fatalf("unexpected saved window %+v", w)
	}
	if !reflect.DeepEqual(w.DaysOfWeek, []int{1, 3, 5}) {
		t.Fatalf("expected sorted days, got %v", w.DaysOfWeek)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(Defaults{RadiusMeters: 50}))
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "settings.db"), Defaults{RadiusMeters: 50})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestCachedStoreFallsThroughWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	exerciseStore(t, &CachedStore{
		Store: NewMemoryStore(Defaults{RadiusMeters: 50}),
		Redis: client,
		TTL:   time.Minute,
	})
}

func TestDays(t *testing.T) {
	if got := formatDays([]int{0, 6}); got != "0,6" {
		t.Fatalf("expected 0,6, got %q", got)
	}
	days, err := parseDays("")
	if err != nil || len(days) != 0 {
		t.Fatalf("expected no days, got %v (%v)", days, err)
	}
	if _, err := parseDays("1,x"); err == nil {
		t.Fatalf("expected parse error")
	}
}
