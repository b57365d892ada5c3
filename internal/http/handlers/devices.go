package handlers

import (
	"errors"
	"net/http"
	"strings"

	"genfity-floor-services/internal/location"
	"genfity-floor-services/internal/utils"
	"genfity-floor-services/pkg/response"

	"go.uber.org/zap"
)

// PublicDeviceLocation accepts a fix, a fix error or a connection type from
// a floor device that cannot hold a websocket open.
func (h *Handler) PublicDeviceLocation(w http.ResponseWriter, r *http.Request) {
	merchantID, err := readPathInt64(r, "merchantId")
	if err != nil || merchantID <= 0 {
		response.Error(w, http.StatusBadRequest, "MERCHANT_ID_REQUIRED", "Merchant ID is required")
		return
	}
	deviceID := readPathString(r, "deviceId")
	if deviceID == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Device ID is required")
		return
	}
	if secret := h.Config.DeviceTokenSecret; secret != "" {
		if !utils.VerifyDeviceToken(secret, r.Header.Get("X-Device-Token"), merchantID, deviceID) {
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Valid device token required")
			return
		}
	}
	var report location.Report
	if err := decodeJSON(w, r, &report); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if err := report.ApplyTo(h.Registry.Feed(merchantID, deviceID)); err != nil {
		if !errors.Is(err, location.ErrIncompleteFix) {
			h.logger().Debug("rejected location report",
				zap.Int64("merchantId", merchantID),
				zap.String("deviceId", deviceID),
				zap.Error(err),
			)
		}
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	response.Success(w, map[string]any{"merchantId": merchantID, "deviceId": deviceID, "accepted": true})
}

func (h *Handler) MerchantDeviceGuard(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := requireMerchant(w, r)
	if !ok {
		return
	}
	deviceID := readPathString(r, "deviceId")
	session, found := h.Sessions.Lookup(merchantID, deviceID)
	if !found {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "No active guard session for device")
		return
	}
	response.Success(w, session)
}

// MerchantDeviceToken pairs a floor device with the merchant. Devices send
// the token as X-Device-Token or the deviceToken websocket query parameter.
func (h *Handler) MerchantDeviceToken(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := requireMerchant(w, r)
	if !ok {
		return
	}
	deviceID := readPathString(r, "deviceId")
	if deviceID == "" || strings.ContainsAny(deviceID, "/+#") {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid device ID")
		return
	}
	if h.Config.DeviceTokenSecret == "" {
		response.Error(w, http.StatusServiceUnavailable, "DEVICE_PAIRING_DISABLED", "Device pairing is not configured")
		return
	}
	response.Success(w, map[string]any{
		"merchantId":  merchantID,
		"deviceId":    deviceID,
		"deviceToken": utils.CreateDeviceToken(h.Config.DeviceTokenSecret, merchantID, deviceID),
	})
}
