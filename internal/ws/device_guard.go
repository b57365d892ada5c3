package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"genfity-floor-services/internal/geofence"
	"genfity-floor-services/internal/guard"
	"genfity-floor-services/internal/location"
	"genfity-floor-services/internal/queue"
	"genfity-floor-services/internal/utils"

	"go.uber.org/zap"
)

// DeviceGuardWS runs one geofence guard per connected floor device and
// streams its state. The device pushes its own fixes over the socket and
// answers "location.request" messages; fixes from HTTP or MQTT for the same
// merchant device land in the same feed.
func (s *Server) DeviceGuardWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	merchantID, err := parseInt64(r.URL.Query().Get("merchantId"))
	deviceID := strings.TrimSpace(r.URL.Query().Get("deviceId"))
	if err != nil || merchantID <= 0 || deviceID == "" {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "invalid request"})
		return
	}
	if secret := s.Config.DeviceTokenSecret; secret != "" {
		if !utils.VerifyDeviceToken(secret, r.URL.Query().Get("deviceToken"), merchantID, deviceID) {
			_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
			return
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := &wsRealtimeClient{conn: conn}
	logger := s.logger().With(zap.Int64("merchantId", merchantID), zap.String("deviceId", deviceID))
	feed, releaseFeed := s.Registry.Acquire(merchantID, deviceID)
	defer releaseFeed()
	// Re-checks read with no cache, so the device is asked for a fix each time.
	stopRequests := feed.OnRequest(func() {
		_ = client.writeJSON(map[string]any{"type": "location.request"})
	})
	defer stopRequests()
	source := location.NewSource(feed, logger,
		location.WithTimeout(s.Config.LocationTimeout),
		location.WithWatchMaxAge(s.Config.LocationWatchMaxAge),
		location.WithConnectionReporter(feed),
	)

	var sessionID string
	g := guard.New(source, s.fenceLoader(merchantID), logger, guard.Options{
		RecheckInterval: s.Config.GeofenceRecheckInterval,
		OnChange: func(snap guard.Snapshot) {
			_ = client.writeJSON(map[string]any{"type": "guard.state", "sessionId": sessionID, "data": snap})
		},
		OnOutside: func(sample location.Sample, snap guard.Snapshot) {
			_ = client.writeJSON(map[string]any{"type": "guard.outside", "sessionId": sessionID, "data": snap})
			s.publishLeftPremises(ctx, merchantID, deviceID, sessionID, sample, snap)
		},
	})
	sessionID, release := s.Sessions.Register(merchantID, deviceID, g)
	defer release()

	_ = client.writeJSON(map[string]any{"type": "guard.session", "sessionId": sessionID, "data": g.Snapshot()})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = g.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.keepAlive(ctx, client)
	}()

	clientClosed := s.readLoop(client, func(msg clientMessage, raw []byte) {
		switch msg.Type {
		case "location":
			var report location.Report
			if err := json.Unmarshal(raw, &report); err != nil {
				_ = client.writeJSON(map[string]any{"type": "error", "message": "invalid location"})
				return
			}
			if err := report.ApplyTo(feed); err != nil {
				_ = client.writeJSON(map[string]any{"type": "error", "message": err.Error()})
			}
		case "connection":
			feed.SetConnectionType(msg.ConnectionType)
		default:
			logger.Debug("ignoring guard client message", zap.String("type", msg.Type))
		}
	})

	select {
	case <-clientClosed:
	case <-ctx.Done():
	}
	cancel()
	wg.Wait()
}

// fenceLoader reads the merchant's fence at every evaluation so settings
// changes apply to running guards.
func (s *Server) fenceLoader(merchantID int64) guard.FenceLoader {
	return func(ctx context.Context) (geofence.Fence, error) {
		if s.Settings == nil {
			return geofence.Unconfigured(), nil
		}
		return s.Settings.Geofence(ctx, merchantID)
	}
}

func (s *Server) publishLeftPremises(ctx context.Context, merchantID int64, deviceID, sessionID string, sample location.Sample, snap guard.Snapshot) {
	if s.Events == nil {
		return
	}
	evt := queue.DeviceLeftPremisesEvent{
		MerchantID:     merchantID,
		DeviceID:       deviceID,
		SessionID:      sessionID,
		Latitude:       sample.Latitude,
		Longitude:      sample.Longitude,
		AccuracyMeters: sample.AccuracyMeters,
		DistanceMeters: snap.DistanceMeters,
		At:             time.Now(),
	}
	if err := s.Events.PublishDeviceLeftPremises(ctx, evt); err != nil {
		s.logger().Warn("device.left_premises publish failed",
			zap.Int64("merchantId", merchantID),
			zap.String("deviceId", deviceID),
			zap.Error(err),
		)
	}
}
