package handlers

import (
	"net/http"

	"genfity-floor-services/internal/preorder"
	"genfity-floor-services/internal/settings"
	"genfity-floor-services/internal/utils"
	"genfity-floor-services/pkg/response"

	"go.uber.org/zap"
)

func (h *Handler) MerchantPreOrderWindowGet(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := requireMerchant(w, r)
	if !ok {
		return
	}
	window, err := h.Settings.PreOrderWindow(r.Context(), merchantID)
	if err != nil {
		h.logger().Error("pre-order window load failed", zap.Int64("merchantId", merchantID), zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load pre-order window")
		return
	}
	response.Success(w, window)
}

func (h *Handler) MerchantPreOrderWindowUpdate(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := requireMerchant(w, r)
	if !ok {
		return
	}
	var body settings.PreOrderWindowInput
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	window, err := body.Window()
	if err != nil {
		h.writeSaveError(w, err, "Failed to save pre-order window")
		return
	}
	if err := h.Settings.SavePreOrderWindow(r.Context(), merchantID, window); err != nil {
		h.writeSaveError(w, err, "Failed to save pre-order window")
		return
	}
	response.Success(w, window)
}

func (h *Handler) MerchantPreOrderWindowStatus(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := requireMerchant(w, r)
	if !ok {
		return
	}
	h.writePreOrderStatus(w, r, merchantID)
}

// PublicPreOrderStatus lets the ordering page decide whether to accept
// scheduled orders without a merchant token.
func (h *Handler) PublicPreOrderStatus(w http.ResponseWriter, r *http.Request) {
	merchantID, err := readPathInt64(r, "merchantId")
	if err != nil || merchantID <= 0 {
		response.Error(w, http.StatusBadRequest, "MERCHANT_ID_REQUIRED", "Merchant ID is required")
		return
	}
	h.writePreOrderStatus(w, r, merchantID)
}

type preOrderStatusPayload struct {
	preorder.Status
	LocalDate string          `json:"localDate"`
	LocalTime string          `json:"localTime"`
	Window    preorder.Window `json:"window"`
}

func (h *Handler) writePreOrderStatus(w http.ResponseWriter, r *http.Request, merchantID int64) {
	window, err := h.Settings.PreOrderWindow(r.Context(), merchantID)
	if err != nil {
		h.logger().Error("pre-order window load failed", zap.Int64("merchantId", merchantID), zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load pre-order window")
		return
	}
	loc := window.Location(h.Config.DefaultTimezone)
	now := h.now().In(loc)
	response.Success(w, preOrderStatusPayload{
		Status:    preorder.Evaluate(window, now),
		LocalDate: utils.CurrentDateInTimezone(now, loc),
		LocalTime: utils.CurrentTimeInTimezone(now, loc),
		Window:    window,
	})
}
