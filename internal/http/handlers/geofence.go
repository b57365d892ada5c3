package handlers

import (
	"net/http"

	"genfity-floor-services/internal/geofence"
	"genfity-floor-services/internal/settings"
	"genfity-floor-services/pkg/response"

	"go.uber.org/zap"
)

type geofencePayload struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	RadiusMeters float64  `json:"radius"`
	Configured   bool     `json:"configured"`
}

func toGeofencePayload(f geofence.Fence) geofencePayload {
	return geofencePayload{
		Latitude:     f.Latitude,
		Longitude:    f.Longitude,
		RadiusMeters: f.RadiusMeters,
		Configured:   f.Configured(),
	}
}

func (h *Handler) MerchantGeofenceGet(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := requireMerchant(w, r)
	if !ok {
		return
	}
	fence, err := h.Settings.Geofence(r.Context(), merchantID)
	if err != nil {
		h.logger().Error("geofence load failed", zap.Int64("merchantId", merchantID), zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load geofence")
		return
	}
	response.Success(w, toGeofencePayload(fence))
}

func (h *Handler) MerchantGeofenceUpdate(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := requireMerchant(w, r)
	if !ok {
		return
	}
	var body settings.GeofenceInput
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	fence, err := body.Fence(h.Config.GeofenceDefaultRadius)
	if err != nil {
		h.writeSaveError(w, err, "Failed to save geofence")
		return
	}
	if err := h.Settings.SaveGeofence(r.Context(), merchantID, fence); err != nil {
		h.writeSaveError(w, err, "Failed to save geofence")
		return
	}
	h.logger().Info("geofence updated",
		zap.Int64("merchantId", merchantID),
		zap.Float64("radius", fence.RadiusMeters),
	)
	response.Success(w, toGeofencePayload(fence))
}

func (h *Handler) MerchantGeofenceDelete(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := requireMerchant(w, r)
	if !ok {
		return
	}
	if err := h.Settings.ClearGeofence(r.Context(), merchantID); err != nil {
		h.writeSaveError(w, err, "Failed to clear geofence")
		return
	}
	fence, err := h.Settings.Geofence(r.Context(), merchantID)
	if err != nil {
		fence = geofence.Unconfigured()
	}
	response.Success(w, toGeofencePayload(fence))
}

type geofenceCheckBody struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// MerchantGeofenceCheck evaluates an arbitrary point against the stored fence.
func (h *Handler) MerchantGeofenceCheck(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := requireMerchant(w, r)
	if !ok {
		return
	}
	var body geofenceCheckBody
	if err := decodeJSON(w, r, &body); err != nil || body.Latitude == nil || body.Longitude == nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "latitude and longitude are required")
		return
	}
	if *body.Latitude < -90 || *body.Latitude > 90 || *body.Longitude < -180 || *body.Longitude > 180 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "latitude or longitude out of range")
		return
	}
	fence, err := h.Settings.Geofence(r.Context(), merchantID)
	if err != nil {
		h.logger().Error("geofence load failed", zap.Int64("merchantId", merchantID), zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load geofence")
		return
	}
	response.Success(w, h.evaluator().Evaluate(*body.Latitude, *body.Longitude, fence))
}
