package handlers

import (
	"time"

	"genfity-floor-services/internal/config"
	"genfity-floor-services/internal/geofence"
	"genfity-floor-services/internal/guard"
	"genfity-floor-services/internal/location"
	"genfity-floor-services/internal/settings"
	"genfity-floor-services/internal/signal"

	"go.uber.org/zap"
)

type Handler struct {
	Logger   *zap.Logger
	Config   config.Config
	Settings settings.Store
	Registry *location.Registry
	Sessions *guard.Sessions
	Signals  signal.Broadcaster
	Now      func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Handler) evaluator() *geofence.Evaluator {
	return geofence.NewEvaluator(h.logger())
}
