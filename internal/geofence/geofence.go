package geofence

import (
	"math"

	"go.uber.org/zap"
)

const (
	EarthRadiusMeters   = 6371000.0
	DefaultRadiusMeters = 50.0
)

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Fence is a circular boundary around the restaurant. A fence without a
// center is unconfigured and admits every device.
type Fence struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	RadiusMeters float64  `json:"radius"`
}

func Unconfigured() Fence {
	return Fence{RadiusMeters: DefaultRadiusMeters}
}

func NewFence(lat, lon, radius float64) Fence {
	return Fence{Latitude: &lat, Longitude: &lon, RadiusMeters: radius}
}

func (f Fence) Configured() bool {
	return f.Latitude != nil && f.Longitude != nil
}

func (f Fence) Center() (Point, bool) {
	if !f.Configured() {
		return Point{}, false
	}
	return Point{Latitude: *f.Latitude, Longitude: *f.Longitude}, true
}

type Result struct {
	Inside         bool     `json:"inside"`
	Configured     bool     `json:"configured"`
	DistanceMeters *float64 `json:"distanceMeters"`
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// DistanceMeters returns the great-circle distance between a and b.
func DistanceMeters(a, b Point) float64 {
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func Evaluate(lat, lon float64, fence Fence) Result {
	center, ok := fence.Center()
	if !ok {
		return Result{Inside: true}
	}
	d := DistanceMeters(Point{Latitude: lat, Longitude: lon}, center)
	return Result{Inside: d <= fence.RadiusMeters, Configured: true, DistanceMeters: &d}
}

func IsWithin(lat, lon float64, fence Fence) bool {
	return Evaluate(lat, lon, fence).Inside
}

// Offset returns the point reached by travelling meters from p along the
// given initial bearing (degrees clockwise from north).
func Offset(p Point, bearingDeg, meters float64) Point {
	delta := meters / EarthRadiusMeters
	theta := toRad(bearingDeg)
	phi1 := toRad(p.Latitude)
	lambda1 := toRad(p.Longitude)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(phi1), math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2))

	lon := math.Mod(toDeg(lambda2)+540, 360) - 180
	return Point{Latitude: toDeg(phi2), Longitude: lon}
}

type Evaluator struct {
	Logger *zap.Logger
}

func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{Logger: logger}
}

func (e *Evaluator) Evaluate(lat, lon float64, fence Fence) Result {
	res := Evaluate(lat, lon, fence)
	if !res.Configured {
		e.Logger.Debug("geofence not configured; allowing device")
		return res
	}
	e.Logger.Debug("geofence distance",
		zap.Float64("distanceMeters", *res.DistanceMeters),
		zap.Float64("radiusMeters", fence.RadiusMeters),
		zap.Bool("inside", res.Inside),
	)
	return res
}
