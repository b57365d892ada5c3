package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "SETTINGS_DRIVER", "GEOFENCE_DEFAULT_RADIUS", "ORDER_POLL_INTERVAL"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.SettingsDriver != "memory" {
		t.Fatalf("expected memory driver, got %q", cfg.SettingsDriver)
	}
	if cfg.GeofenceDefaultRadius != 50 {
		t.Fatalf("expected default radius 50, got %v", cfg.GeofenceDefaultRadius)
	}
	if cfg.OrderPollInterval != 5*time.Second {
		t.Fatalf("expected 5s poll interval, got %v", cfg.OrderPollInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/genfity")
	t.Setenv("SETTINGS_DRIVER", "")
	t.Setenv("GEOFENCE_DEFAULT_RADIUS", "120.5")
	t.Setenv("GEOFENCE_RECHECK_INTERVAL", "not-a-duration")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	if cfg.SettingsDriver != "postgres" {
		t.Fatalf("expected postgres driver when DATABASE_URL is set, got %q", cfg.SettingsDriver)
	}
	if cfg.GeofenceDefaultRadius != 120.5 {
		t.Fatalf("expected radius override, got %v", cfg.GeofenceDefaultRadius)
	}
	if cfg.GeofenceRecheckInterval != 30*time.Second {
		t.Fatalf("expected invalid duration to fall back, got %v", cfg.GeofenceRecheckInterval)
	}
	if len(cfg.CorsAllowedOrigins) != 2 {
		t.Fatalf("expected two origins, got %v", cfg.CorsAllowedOrigins)
	}
}
