package httpapi

import (
	"net/http"

	"genfity-floor-services/internal/config"
	"genfity-floor-services/internal/http/handlers"
	"genfity-floor-services/internal/middleware"
	"genfity-floor-services/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(logger *zap.Logger, cfg config.Config, h *handlers.Handler, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"X-Request-Id",
				"X-Device-Token",
				"Cache-Control",
			},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Use(setResponseHeader("X-Floor-Service-Origin", "native"))
		r.Get("/merchants/{merchantId}/preorder-status", h.PublicPreOrderStatus)
		r.Post("/merchants/{merchantId}/devices/{deviceId}/location", h.PublicDeviceLocation)
	})

	r.Route("/api/merchant", func(r chi.Router) {
		r.Use(setResponseHeader("X-Floor-Service-Origin", "native"))
		r.Use(middleware.MerchantAuth(cfg.JWTSecret))

		r.Get("/geofence", h.MerchantGeofenceGet)
		r.Put("/geofence", h.MerchantGeofenceUpdate)
		r.Delete("/geofence", h.MerchantGeofenceDelete)
		r.Post("/geofence/check", h.MerchantGeofenceCheck)

		r.Get("/preorder-window", h.MerchantPreOrderWindowGet)
		r.Put("/preorder-window", h.MerchantPreOrderWindowUpdate)
		r.Get("/preorder-window/status", h.MerchantPreOrderWindowStatus)

		r.Post("/orders/signal", h.MerchantOrdersSignal)
		r.Get("/devices/{deviceId}/guard", h.MerchantDeviceGuard)
		r.Post("/devices/{deviceId}/token", h.MerchantDeviceToken)
	})

	if wsServer != nil {
		r.Get("/ws/merchant/orders", wsServer.MerchantOrdersWS)
		r.Get("/ws/device/guard", wsServer.DeviceGuardWS)
	}

	return r
}

func setResponseHeader(name string, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(name, value)
			next.ServeHTTP(w, r)
		})
	}
}
