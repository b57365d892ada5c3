package auth

import (
	"testing"
	"time"
)

func TestParseBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc": "abc",
		"bearer abc": "abc",
		"Token abc":  "",
		"Bearer":     "",
		"":           "",
		"Bearer a b": "",
	}
	for header, want := range cases {
		if got := ParseBearerToken(header); got != want {
			t.Fatalf("%q: expected %q, got %q", header, want, got)
		}
	}
}

func TestTokenFromQuery(t *testing.T) {
	if got := TokenFromQuery("Bearer abc"); got != "abc" {
		t.Fatalf("expected bearer form, got %q", got)
	}
	if got := TokenFromQuery(" abc "); got != "abc" {
		t.Fatalf("expected bare token, got %q", got)
	}
	if got := TokenFromQuery("Basic abc"); got != "" {
		t.Fatalf("expected other schemes to be rejected, got %q", got)
	}
}

func TestSignAndVerify(t *testing.T) {
	merchantID := "42"
	token, err := SignAccessToken(Claims{UserID: "7", Role: RoleMerchantStaff, MerchantID: &merchantID, Permissions: []string{"orders"}}, "secret", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := VerifyAccessToken(token, "secret")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !claims.IsMerchant() || *claims.MerchantID != "42" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.Has(PermOrders) || claims.Has(PermMerchantSettings) {
		t.Fatalf("unexpected permissions %v", claims.Permissions)
	}

	if _, err := VerifyAccessToken(token, "other"); err == nil {
		t.Fatalf("expected signature mismatch")
	}
	if _, err := VerifyAccessToken("", "secret"); err != ErrTokenRequired {
		t.Fatalf("expected ErrTokenRequired, got %v", err)
	}
}

func TestOwnerHasEveryPermission(t *testing.T) {
	c := &Claims{Role: RoleMerchantOwner}
	if !c.Has(PermMerchantSettings) {
		t.Fatalf("owners are not restricted by the staff permission list")
	}
}

func TestGetPermissionForAPI(t *testing.T) {
	cases := []struct {
		path   string
		method string
		want   StaffPermission
	}{
		{"/api/merchant/geofence", "GET", PermOrders},
		{"/api/merchant/geofence", "PUT", PermMerchantSettings},
		{"/api/merchant/geofence", "DELETE", PermMerchantSettings},
		{"/api/merchant/geofence/check", "POST", PermOrders},
		{"/api/merchant/preorder-window/status", "GET", PermOrders},
		{"/api/merchant/preorder-window", "PUT", PermMerchantSettings},
		{"/api/merchant/orders/signal", "POST", PermOrders},
		{"/ws/merchant/orders", "GET", PermOrders},
		{"/api/merchant/devices/tab-1/guard", "GET", PermOrders},
		{"/api/merchant/devices/tab-1/token", "POST", PermMerchantSettings},
	}
	for _, tc := range cases {
		got := GetPermissionForAPI(tc.path, tc.method)
		if got == nil || *got != tc.want {
			t.Fatalf("%s %s: expected %s, got %v", tc.method, tc.path, tc.want, got)
		}
	}
	if GetPermissionForAPI("/api/public/merchants/1/preorder-status", "GET") != nil {
		t.Fatalf("expected public path to need no permission")
	}
}
