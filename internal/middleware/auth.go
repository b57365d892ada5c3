package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"

	"genfity-floor-services/internal/auth"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	UserID      int64
	Role        auth.UserRole
	Email       string
	MerchantID  int64
	IsOwner     bool
	Permissions []string
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

// AuthError carries the HTTP status an authentication failure maps to.
type AuthError struct {
	Status  int
	Message string
	Debug   string
}

func (e *AuthError) Error() string { return e.Message }

func writeAuthError(w http.ResponseWriter, authErr *AuthError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(authErr.Status)

	code := "UNAUTHORIZED"
	if authErr.Status == http.StatusForbidden {
		code = "FORBIDDEN"
	}
	payload := map[string]any{
		"success": false,
		"error":   code,
		"message": authErr.Message,
	}

	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(authErr.Debug) != "" {
		payload["debug"] = authErr.Debug
	}

	_ = json.NewEncoder(w).Encode(payload)
}

// AuthenticateMerchant verifies a merchant token and the staff permission
// required for path and method.
func AuthenticateMerchant(token, jwtSecret, path, method string) (*AuthContext, *AuthError) {
	claims, err := auth.VerifyAccessToken(token, jwtSecret)
	if err != nil {
		return nil, &AuthError{Status: http.StatusUnauthorized, Message: "Authorization token required", Debug: err.Error()}
	}

	if !claims.IsMerchant() {
		return nil, &AuthError{Status: http.StatusForbidden, Message: "Merchant access required"}
	}
	if claims.MerchantID == nil {
		return nil, &AuthError{Status: http.StatusUnauthorized, Message: "Merchant not found"}
	}
	merchantID, err := strconv.ParseInt(strings.TrimSpace(*claims.MerchantID), 10, 64)
	if err != nil || merchantID <= 0 {
		return nil, &AuthError{Status: http.StatusUnauthorized, Message: "Merchant not found"}
	}
	userID, err := strconv.ParseInt(strings.TrimSpace(claims.UserID), 10, 64)
	if err != nil {
		return nil, &AuthError{Status: http.StatusUnauthorized, Message: "Invalid token"}
	}

	if perm := auth.GetPermissionForAPI(path, method); perm != nil && !claims.Has(*perm) {
		return nil, &AuthError{Status: http.StatusForbidden, Message: "You do not have permission to access this resource"}
	}

	return &AuthContext{
		UserID:      userID,
		Role:        claims.Role,
		Email:       claims.Email,
		MerchantID:  merchantID,
		IsOwner:     claims.Role == auth.RoleMerchantOwner,
		Permissions: claims.Permissions,
	}, nil
}

func MerchantAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			authCtx, authErr := AuthenticateMerchant(token, jwtSecret, r.URL.Path, r.Method)
			if authErr != nil {
				writeAuthError(w, authErr)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}
