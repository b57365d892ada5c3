package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
)

func base64UrlEncode(input []byte) string {
	return strings.TrimRight(base64.URLEncoding.EncodeToString(input), "=")
}

func base64UrlDecode(input string) ([]byte, error) {
	padded := input
	if m := len(input) % 4; m != 0 {
		padded += strings.Repeat("=", 4-m)
	}
	return base64.URLEncoding.DecodeString(padded)
}

func signPayload(secret, payloadB64 string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payloadB64))
	return mac.Sum(nil)
}

// CreateDeviceToken pairs a floor device with a merchant. The token is
// "<base64url(merchantId:deviceId)>.<base64url(hmac)>".
func CreateDeviceToken(secret string, merchantID int64, deviceID string) string {
	payload := strconv.FormatInt(merchantID, 10) + ":" + deviceID
	payloadB64 := base64UrlEncode([]byte(payload))
	return payloadB64 + "." + base64UrlEncode(signPayload(secret, payloadB64))
}

// ParseDeviceToken verifies token and returns the pairing it carries.
func ParseDeviceToken(secret, token string) (int64, string, bool) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 2 {
		return 0, "", false
	}
	payloadB64 := parts[0]

	actual, err := base64UrlDecode(parts[1])
	if err != nil {
		return 0, "", false
	}
	if !hmac.Equal(actual, signPayload(secret, payloadB64)) {
		return 0, "", false
	}

	payloadRaw, err := base64UrlDecode(payloadB64)
	if err != nil {
		return 0, "", false
	}
	merchantText, deviceID, found := strings.Cut(string(payloadRaw), ":")
	if !found || deviceID == "" {
		return 0, "", false
	}
	merchantID, err := strconv.ParseInt(merchantText, 10, 64)
	if err != nil || merchantID <= 0 {
		return 0, "", false
	}
	return merchantID, deviceID, true
}

func VerifyDeviceToken(secret, token string, merchantID int64, deviceID string) bool {
	gotMerchant, gotDevice, ok := ParseDeviceToken(secret, token)
	return ok && gotMerchant == merchantID && gotDevice == deviceID
}
