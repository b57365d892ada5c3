package settings

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"genfity-floor-services/internal/geofence"
	"genfity-floor-services/internal/preorder"

	"github.com/go-playground/validator/v10"
)

const MaxRadiusMeters = 10000

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

type GeofenceInput struct {
	Latitude     *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	RadiusMeters *float64 `json:"radius" validate:"omitempty,gt=0,lte=10000"`
}

type PreOrderWindowInput struct {
	Enabled    bool   `json:"enabled"`
	StartTime  string `json:"startTime" validate:"required,hhmm"`
	EndTime    string `json:"endTime" validate:"required,hhmm"`
	DaysOfWeek []int  `json:"daysOfWeek" validate:"unique,dive,gte=0,lte=6"`
	Timezone   string `json:"timezone" validate:"omitempty,timezone"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			_, err := preorder.ParseClock(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

var fieldMessages = map[string]string{
	"Latitude":     "latitude must be between -90 and 90",
	"Longitude":    "longitude must be between -180 and 180",
	"RadiusMeters": fmt.Sprintf("radius must be greater than 0 and at most %d meters", MaxRadiusMeters),
	"StartTime":    "startTime must be in HH:mm format",
	"EndTime":      "endTime must be in HH:mm format",
	"DaysOfWeek":   "daysOfWeek must contain distinct days between 0 (Sunday) and 6 (Saturday)",
	"Timezone":     "timezone must be a valid IANA timezone",
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	field := verrs[0].StructField()
	if idx := strings.Index(field, "["); idx > 0 {
		field = field[:idx]
	}
	msg, ok := fieldMessages[field]
	if !ok {
		msg = "invalid value"
	}
	return &ValidationError{Field: lowerFirst(field), Message: msg}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	if s == "RadiusMeters" {
		return "radius"
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// Fence validates admin input and converts it; a missing radius takes the
// configured default.
func (in GeofenceInput) Fence(defaultRadius float64) (geofence.Fence, error) {
	if err := getValidator().Struct(in); err != nil {
		return geofence.Fence{}, toValidationError(err)
	}
	radius := defaultRadius
	if radius <= 0 {
		radius = geofence.DefaultRadiusMeters
	}
	if in.RadiusMeters != nil {
		radius = *in.RadiusMeters
	}
	return geofence.NewFence(*in.Latitude, *in.Longitude, radius), nil
}

func (in PreOrderWindowInput) Window() (preorder.Window, error) {
	if err := getValidator().Struct(in); err != nil {
		return preorder.Window{}, toValidationError(err)
	}
	if in.Enabled && len(in.DaysOfWeek) == 0 {
		return preorder.Window{}, &ValidationError{Field: "daysOfWeek", Message: "select at least one day when pre-orders are enabled"}
	}
	if tz := strings.TrimSpace(in.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return preorder.Window{}, &ValidationError{Field: "timezone", Message: fieldMessages["Timezone"]}
		}
	}
	return cloneWindow(preorder.Window{
		Enabled:    in.Enabled,
		Start:      preorder.MustClock(in.StartTime),
		End:        preorder.MustClock(in.EndTime),
		DaysOfWeek: in.DaysOfWeek,
		Timezone:   strings.TrimSpace(in.Timezone),
	}), nil
}
