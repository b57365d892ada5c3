package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type UserRole string

const (
	RoleSuperAdmin    UserRole = "SUPER_ADMIN"
	RoleMerchantOwner UserRole = "MERCHANT_OWNER"
	RoleMerchantStaff UserRole = "MERCHANT_STAFF"
)

var (
	ErrTokenRequired = errors.New("token required")
	ErrTokenExpired  = errors.New("token expired")
)

// Claims are issued by the order service; staff tokens carry their
// permission list so floor screens need no database round trip.
type Claims struct {
	UserID      string   `json:"userId"`
	SessionID   string   `json:"sessionId"`
	Role        UserRole `json:"role"`
	Email       string   `json:"email"`
	MerchantID  *string  `json:"merchantId,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) IsMerchant() bool {
	return c.Role == RoleMerchantOwner || c.Role == RoleMerchantStaff
}

func (c *Claims) Has(perm StaffPermission) bool {
	if c.Role != RoleMerchantStaff {
		return true
	}
	for _, p := range c.Permissions {
		if p == string(perm) {
			return true
		}
	}
	return false
}

func ParseBearerToken(authHeader string) string {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// TokenFromQuery accepts "Bearer <jwt>" or a bare token, for websocket
// clients that cannot set headers.
func TokenFromQuery(value string) string {
	value = strings.TrimSpace(value)
	if token := ParseBearerToken(value); token != "" {
		return token
	}
	if strings.Contains(value, " ") {
		return ""
	}
	return value
}

func VerifyAccessToken(tokenString string, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenRequired
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// SignAccessToken is used by tests and local tooling.
func SignAccessToken(claims Claims, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
