package location

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Report is the device-side payload for one location reading, shared by
// the HTTP, MQTT and websocket ingest paths. A non-empty Error reports a
// failed fix.
type Report struct {
	Latitude       *float64   `json:"latitude"`
	Longitude      *float64   `json:"longitude"`
	AccuracyMeters float64    `json:"accuracy"`
	Error          string     `json:"error"`
	ConnectionType string     `json:"connectionType"`
	Timestamp      *time.Time `json:"timestamp"`
}

var ErrIncompleteFix = errors.New("location report requires latitude and longitude")

// ApplyTo pushes the report into feed. A report carrying only a
// connection type is valid.
func (r Report) ApplyTo(feed *Feed) error {
	if strings.TrimSpace(r.ConnectionType) != "" {
		feed.SetConnectionType(r.ConnectionType)
	}
	if strings.TrimSpace(r.Error) != "" {
		reason := ParseReason(r.Error)
		feed.PushError(CodeForReason(reason), r.Error)
		return nil
	}
	if r.Latitude == nil && r.Longitude == nil {
		if strings.TrimSpace(r.ConnectionType) != "" {
			return nil
		}
		return ErrIncompleteFix
	}
	if r.Latitude == nil || r.Longitude == nil {
		return ErrIncompleteFix
	}
	if *r.Latitude < -90 || *r.Latitude > 90 || *r.Longitude < -180 || *r.Longitude > 180 {
		return fmt.Errorf("location out of range: %v,%v", *r.Latitude, *r.Longitude)
	}
	if r.AccuracyMeters < 0 {
		return fmt.Errorf("negative accuracy: %v", r.AccuracyMeters)
	}
	pos := Position{
		Latitude:       *r.Latitude,
		Longitude:      *r.Longitude,
		AccuracyMeters: r.AccuracyMeters,
	}
	if r.Timestamp != nil {
		pos.Timestamp = *r.Timestamp
	}
	feed.Push(pos)
	return nil
}
