package location

import (
	"errors"
	"testing"
)

func TestReportApplyTo(t *testing.T) {
	feed := NewFeed()
	lat := 100.0
	lon := 0.0
	if err := (Report{Latitude: &lat, Longitude: &lon}).ApplyTo(feed); err == nil {
		t.Fatalf("expected out-of-range fix to be rejected")
	}
	if err := (Report{Latitude: &lon}).ApplyTo(feed); !errors.Is(err, ErrIncompleteFix) {
		t.Fatalf("expected incomplete fix error, got %v", err)
	}
	if err := (Report{}).ApplyTo(feed); !errors.Is(err, ErrIncompleteFix) {
		t.Fatalf("expected incomplete fix error, got %v", err)
	}
	if err := (Report{ConnectionType: "WiFi"}).ApplyTo(feed); err != nil {
		t.Fatalf("connection-only report: %v", err)
	}
	if kind, ok := feed.ConnectionType(); !ok || kind != "wifi" {
		t.Fatalf("expected wifi, got %q", kind)
	}

	w := NewSource(feed, nil).WatchLocation()
	defer w.Clear()
	if err := (Report{Error: "permission_denied"}).ApplyTo(feed); err != nil {
		t.Fatalf("error report: %v", err)
	}
	s := <-w.Updates()
	if !s.Unavailable || s.Reason != ReasonPermissionDenied {
		t.Fatalf("expected permission denied sample, got %+v", s)
	}
}
