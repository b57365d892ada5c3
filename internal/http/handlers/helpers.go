package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"genfity-floor-services/internal/middleware"
	"genfity-floor-services/internal/settings"
	"genfity-floor-services/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errMissingParam = errors.New("missing param")

func readPathString(r *http.Request, key string) string {
	return strings.TrimSpace(chi.URLParam(r, key))
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	return strconv.ParseInt(value, 10, 64)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	return dec.Decode(dest)
}

// requireMerchant reads the merchant id set by MerchantAuth.
func requireMerchant(w http.ResponseWriter, r *http.Request) (int64, bool) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx.MerchantID <= 0 {
		response.Error(w, http.StatusBadRequest, "MERCHANT_ID_REQUIRED", "Merchant context required")
		return 0, false
	}
	return authCtx.MerchantID, true
}

// writeSaveError maps settings errors onto the response envelope.
func (h *Handler) writeSaveError(w http.ResponseWriter, err error, msg string) {
	var verr *settings.ValidationError
	if errors.As(err, &verr) {
		response.FieldError(w, verr.Field, verr.Error())
		return
	}
	h.logger().Error(msg, zap.Error(err))
	response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", msg)
}
