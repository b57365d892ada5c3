package response

import (
	"encoding/json"
	"net/http"
)

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func Error(w http.ResponseWriter, status int, code string, message string) {
	JSON(w, status, map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// FieldError is a 400 VALIDATION_ERROR naming the offending input field.
func FieldError(w http.ResponseWriter, field string, message string) {
	payload := map[string]any{
		"success": false,
		"error":   "VALIDATION_ERROR",
		"message": message,
	}
	if field != "" {
		payload["field"] = field
	}
	JSON(w, http.StatusBadRequest, payload)
}
