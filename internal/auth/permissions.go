package auth

import "strings"

type StaffPermission string

const (
	PermOrders           StaffPermission = "orders"
	PermMerchantSettings StaffPermission = "merchant_settings"
)

// Keys are path prefixes, optionally preceded by a method. The longest
// matching prefix wins; a method-specific key beats a generic one.
var apiPermissionMap = map[string]StaffPermission{
	"/api/merchant/orders":              PermOrders,
	"/ws/merchant/orders":               PermOrders,
	"/api/merchant/devices":             PermOrders,
	"POST /api/merchant/devices":        PermMerchantSettings,
	"GET /api/merchant/geofence":        PermOrders,
	"PUT /api/merchant/geofence":        PermMerchantSettings,
	"DELETE /api/merchant/geofence":     PermMerchantSettings,
	"POST /api/merchant/geofence/check": PermOrders,
	"GET /api/merchant/preorder-window": PermOrders,
	"PUT /api/merchant/preorder-window": PermMerchantSettings,
}

func GetPermissionForAPI(path string, method string) *StaffPermission {
	method = strings.ToUpper(strings.TrimSpace(method))

	var bestPath string
	var bestPerm *StaffPermission
	var bestMethodSpecific bool

	for key, perm := range apiPermissionMap {
		keyPath := key
		methodSpecific := false
		if strings.Contains(key, " ") {
			parts := strings.SplitN(key, " ", 2)
			keyMethod := strings.ToUpper(strings.TrimSpace(parts[0]))
			keyPath = strings.TrimSpace(parts[1])
			methodSpecific = true
			if method == "" || method != keyMethod {
				continue
			}
		}

		if !strings.HasPrefix(path, keyPath) {
			continue
		}

		if bestPerm == nil || len(keyPath) > len(bestPath) || (len(keyPath) == len(bestPath) && methodSpecific && !bestMethodSpecific) {
			bestPath = keyPath
			bestMethodSpecific = methodSpecific
			permCopy := perm
			bestPerm = &permCopy
		}
	}

	return bestPerm
}
