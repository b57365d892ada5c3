package handlers

import (
	"net/http"

	"genfity-floor-services/pkg/response"

	"go.uber.org/zap"
)

// MerchantOrdersSignal makes every connected screen of the merchant re-poll
// immediately, on this instance and, through the relay, on the others.
func (h *Handler) MerchantOrdersSignal(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := requireMerchant(w, r)
	if !ok {
		return
	}
	if h.Signals == nil {
		response.Error(w, http.StatusServiceUnavailable, "SIGNAL_UNAVAILABLE", "Order signal is not configured")
		return
	}
	// Local screens are signaled before the relay can fail, so a relay
	// error only degrades cross-instance delivery.
	relayed := true
	if err := h.Signals.Broadcast(r.Context(), merchantID); err != nil {
		relayed = false
		h.logger().Warn("order signal broadcast failed", zap.Int64("merchantId", merchantID), zap.Error(err))
	}
	response.Success(w, map[string]any{"merchantId": merchantID, "signaledAt": h.now(), "relayed": relayed})
}
