package location

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Reason string

const (
	ReasonPermissionDenied    Reason = "permission_denied"
	ReasonPositionUnavailable Reason = "position_unavailable"
	ReasonTimeout             Reason = "timeout"
	ReasonUnknown             Reason = "unknown"
)

func ParseReason(value string) Reason {
	switch Reason(strings.ToLower(strings.TrimSpace(value))) {
	case ReasonPermissionDenied:
		return ReasonPermissionDenied
	case ReasonPositionUnavailable:
		return ReasonPositionUnavailable
	case ReasonTimeout:
		return ReasonTimeout
	default:
		return ReasonUnknown
	}
}

// Sample is a single location reading as seen by consumers. Unavailable
// samples carry no coordinates and must be treated as "allow".
type Sample struct {
	Latitude       *float64  `json:"latitude"`
	Longitude      *float64  `json:"longitude"`
	AccuracyMeters *float64  `json:"accuracy"`
	Unavailable    bool      `json:"unavailable"`
	Reason         Reason    `json:"reason,omitempty"`
	At             time.Time `json:"at"`
}

func Unavailable(reason Reason) Sample {
	return Sample{Unavailable: true, Reason: reason, At: time.Now()}
}

func FromPosition(p Position) Sample {
	lat, lon := p.Latitude, p.Longitude
	s := Sample{Latitude: &lat, Longitude: &lon, At: p.Timestamp}
	if p.AccuracyMeters > 0 {
		acc := p.AccuracyMeters
		s.AccuracyMeters = &acc
	}
	if s.At.IsZero() {
		s.At = time.Now()
	}
	return s
}

// Position is a raw fix reported by a device.
type Position struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	Timestamp      time.Time
}

type Options struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	MaximumAge         time.Duration
}

// ErrorCode mirrors the platform geolocation error codes.
type ErrorCode int

const (
	PermissionDenied    ErrorCode = 1
	PositionUnavailable ErrorCode = 2
	Timeout             ErrorCode = 3
)

type PositionError struct {
	Code    ErrorCode
	Message string
}

func (e *PositionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("position error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("position error %d", e.Code)
}

func CodeForReason(reason Reason) ErrorCode {
	switch reason {
	case ReasonPermissionDenied:
		return PermissionDenied
	case ReasonTimeout:
		return Timeout
	default:
		return PositionUnavailable
	}
}

var ErrUnsupported = errors.New("geolocation is not supported")

// ReasonFor maps any provider error to the reason reported on an
// unavailable sample.
func ReasonFor(err error) Reason {
	var pe *PositionError
	if errors.As(err, &pe) {
		switch pe.Code {
		case PermissionDenied:
			return ReasonPermissionDenied
		case PositionUnavailable:
			return ReasonPositionUnavailable
		case Timeout:
			return ReasonTimeout
		}
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonUnknown
}

type Provider interface {
	CurrentPosition(ctx context.Context, opts Options) (Position, error)
	WatchPosition(opts Options, fn func(Position, error)) (stop func(), err error)
}

// ConnectionReporter reports the network connection type of a device, if known.
type ConnectionReporter interface {
	ConnectionType() (string, bool)
}
