package ws

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"genfity-floor-services/internal/auth"
	"genfity-floor-services/internal/config"
	"genfity-floor-services/internal/geofence"
	"genfity-floor-services/internal/guard"
	"genfity-floor-services/internal/location"
	"genfity-floor-services/internal/orderwatch"
	"genfity-floor-services/internal/queue"
	"genfity-floor-services/internal/settings"
	"genfity-floor-services/internal/signal"
	"genfity-floor-services/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type recordingEvents struct {
	mu     sync.Mutex
	events []queue.DeviceLeftPremisesEvent
}

func (r *recordingEvents) PublishDeviceLeftPremises(ctx context.Context, evt queue.DeviceLeftPremisesEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingEvents) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type mutableOrders struct {
	mu     sync.Mutex
	orders []orderwatch.Order
}

func (m *mutableOrders) set(orders ...orderwatch.Order) {
	m.mu.Lock()
	m.orders = orders
	m.mu.Unlock()
}

func (m *mutableOrders) ActiveOrders(ctx context.Context, merchantID int64) ([]orderwatch.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]orderwatch.Order(nil), m.orders...), nil
}

func testServer(t *testing.T, opts ...func(*Server)) (*Server, *httptest.Server) {
	t.Helper()
	srv := &Server{
		Config: config.Config{
			JWTSecret:               "secret",
			LocationTimeout:         50 * time.Millisecond,
			LocationWatchMaxAge:     time.Minute,
			GeofenceRecheckInterval: time.Hour,
			OrderPollInterval:       time.Hour,
			WSHeartbeatInterval:     time.Minute,
		},
		Settings: settings.NewMemoryStore(settings.Defaults{RadiusMeters: geofence.DefaultRadiusMeters}),
		Registry: location.NewRegistry(),
		Sessions: guard.NewSessions(),
		Bus:      signal.NewBus(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	r := chi.NewRouter()
	r.Get("/ws/device/guard", srv.DeviceGuardWS)
	r.Get("/ws/merchant/orders", srv.MerchantOrdersWS)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server, path string, query url.Values) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + path + "?" + query.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil returns the first message of the given type.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", msgType)
		if msg["type"] == msgType {
			return msg
		}
	}
}

func readState(t *testing.T, conn *websocket.Conn, want guard.State) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", want)
		if msg["type"] != "guard.state" {
			continue
		}
		data := msg["data"].(map[string]any)
		if data["state"] == string(want) {
			return data
		}
	}
}

func TestDeviceGuardRejectsInvalidQuery(t *testing.T) {
	_, ts := testServer(t)
	conn := dial(t, ts, "/ws/device/guard", url.Values{"deviceId": {"tab-1"}})
	msg := readUntil(t, conn, "error")
	require.Equal(t, "invalid request", msg["message"])
}

func TestDeviceGuardStreamsStateAndPublishesExit(t *testing.T) {
	events := &recordingEvents{}
	srv, ts := testServer(t, func(s *Server) { s.Events = events })

	center := geofence.Point{Latitude: 9.8965, Longitude: 8.8583}
	require.NoError(t, srv.Settings.SaveGeofence(context.Background(), 7, geofence.NewFence(center.Latitude, center.Longitude, 50)))

	conn := dial(t, ts, "/ws/device/guard", url.Values{"merchantId": {"7"}, "deviceId": {"tab-1"}})
	session := readUntil(t, conn, "guard.session")
	sessionID := session["sessionId"].(string)
	require.NotEmpty(t, sessionID)

	// No fix arrives before the timeout: the guard fails open.
	timedOut := readState(t, conn, guard.StateInside)
	require.Equal(t, string(location.ReasonTimeout), timedOut["reason"])

	far := geofence.Offset(center, 90, 500)
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "location", "latitude": far.Latitude, "longitude": far.Longitude, "accuracy": 8}))
	readState(t, conn, guard.StateOutside)
	exit := readUntil(t, conn, "guard.outside")
	require.Equal(t, sessionID, exit["sessionId"])

	require.Eventually(t, func() bool { return events.count() == 1 }, time.Second, 10*time.Millisecond)
	evt := events.events[0]
	require.Equal(t, int64(7), evt.MerchantID)
	require.Equal(t, "tab-1", evt.DeviceID)
	require.InDelta(t, 500, *evt.DistanceMeters, 1)

	snap, ok := srv.Sessions.Lookup(7, "tab-1")
	require.True(t, ok)
	require.Equal(t, guard.StateOutside, snap.Snapshot.State)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "location", "latitude": center.Latitude, "longitude": center.Longitude}))
	readState(t, conn, guard.StateInside)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return srv.Sessions.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMerchantOrdersRequiresToken(t *testing.T) {
	_, ts := testServer(t, func(s *Server) { s.Orders = &mutableOrders{} })
	conn := dial(t, ts, "/ws/merchant/orders", url.Values{"token": {"Bearer nope"}})
	msg := readUntil(t, conn, "error")
	require.Equal(t, "unauthorized", msg["message"])
}

func TestMerchantOrdersAlertsOnNewOrder(t *testing.T) {
	orders := &mutableOrders{}
	orders.set(orderwatch.Order{ID: "1", OrderNumber: "ORD-000001", CustomerName: "Ana"})
	srv, ts := testServer(t, func(s *Server) { s.Orders = orders })

	merchantID := "7"
	token, err := auth.SignAccessToken(auth.Claims{UserID: "1", Role: auth.RoleMerchantOwner, MerchantID: &merchantID}, "secret", time.Minute)
	require.NoError(t, err)

	conn := dial(t, ts, "/ws/merchant/orders", url.Values{
		"token":                  {"Bearer " + token},
		"notificationPermission": {"granted"},
	})

	initial := readUntil(t, conn, "orders.state")
	require.Len(t, initial["data"], 1)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "audio.unlock"}))
	armed := readUntil(t, conn, "audio.armed")
	require.Equal(t, "running", armed["state"])

	orders.set(
		orderwatch.Order{ID: "1", OrderNumber: "ORD-000001", CustomerName: "Ana"},
		orderwatch.Order{ID: "2", OrderNumber: "ORD-00ab12", CustomerName: ""},
	)
	require.NoError(t, srv.Bus.Broadcast(context.Background(), 7))

	fresh := readUntil(t, conn, "orders.new")
	require.Len(t, fresh["data"], 1)

	sound := readUntil(t, conn, "alert.sound")
	require.Len(t, sound["tones"], 3)
	require.Nil(t, sound["fallback"])

	shown := readUntil(t, conn, "notification.show")
	n := shown["notification"].(map[string]any)
	require.Equal(t, "New order received", n["title"])
	require.Equal(t, "Order #00AB12 from Guest", n["body"])
	require.Equal(t, float64(5000), shown["autoDismissMs"])
}

func TestMerchantOrdersFallbackBeforeUnlock(t *testing.T) {
	orders := &mutableOrders{}
	orders.set(orderwatch.Order{ID: "1"})
	srv, ts := testServer(t, func(s *Server) { s.Orders = orders })

	merchantID := "9"
	token, err := auth.SignAccessToken(auth.Claims{UserID: "1", Role: auth.RoleMerchantOwner, MerchantID: &merchantID}, "secret", time.Minute)
	require.NoError(t, err)

	conn := dial(t, ts, "/ws/merchant/orders", url.Values{"token": {token}})
	readUntil(t, conn, "orders.state")

	orders.set(orderwatch.Order{ID: "1"}, orderwatch.Order{ID: "2"}, orderwatch.Order{ID: "3"})
	require.NoError(t, srv.Bus.Broadcast(context.Background(), 9))

	sound := readUntil(t, conn, "alert.sound")
	require.Equal(t, true, sound["fallback"])
	require.Len(t, sound["tones"], 1)

	// Permission is still "default": the screen is asked, the notification waits.
	readUntil(t, conn, "notification.permission.request")
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "notification.permission", "permission": "granted"}))
	shown := readUntil(t, conn, "notification.show")
	n := shown["notification"].(map[string]any)
	require.Equal(t, "2 new orders received", n["title"])
}

func TestDeviceGuardRequiresPairingWhenConfigured(t *testing.T) {
	_, ts := testServer(t, func(s *Server) { s.Config.DeviceTokenSecret = "device-secret" })

	conn := dial(t, ts, "/ws/device/guard", url.Values{"merchantId": {"7"}, "deviceId": {"tab-1"}})
	msg := readUntil(t, conn, "error")
	require.Equal(t, "unauthorized", msg["message"])

	token := utils.CreateDeviceToken("device-secret", 7, "tab-1")
	paired := dial(t, ts, "/ws/device/guard", url.Values{"merchantId": {"7"}, "deviceId": {"tab-1"}, "deviceToken": {token}})
	readUntil(t, paired, "guard.session")
}

func TestDeviceGuardRecheckRequestsFreshFix(t *testing.T) {
	events := &recordingEvents{}
	srv, ts := testServer(t, func(s *Server) {
		s.Events = events
		s.Config.GeofenceRecheckInterval = 40 * time.Millisecond
		s.Config.LocationTimeout = time.Second
	})

	center := geofence.Point{Latitude: 9.8965, Longitude: 8.8583}
	require.NoError(t, srv.Settings.SaveGeofence(context.Background(), 7, geofence.NewFence(center.Latitude, center.Longitude, 50)))
	far := geofence.Offset(center, 90, 500)

	conn := dial(t, ts, "/ws/device/guard", url.Values{"merchantId": {"7"}, "deviceId": {"tab-1"}})

	// The device answers every request with the same far fix.
	var states []string
	requests, rechecks := 0, 0
	deadline := time.Now().Add(500 * time.Millisecond)
	require.NoError(t, conn.SetReadDeadline(deadline.Add(time.Second)))
	for time.Now().Before(deadline) {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		switch msg["type"] {
		case "location.request":
			requests++
			require.NoError(t, conn.WriteJSON(map[string]any{"type": "location", "latitude": far.Latitude, "longitude": far.Longitude, "accuracy": 8}))
		case "guard.state":
			data := msg["data"].(map[string]any)
			states = append(states, data["state"].(string))
			if data["trigger"] == string(guard.TriggerRecheck) {
				rechecks++
			}
		}
	}

	require.GreaterOrEqual(t, requests, 3)
	require.GreaterOrEqual(t, rechecks, 2)
	for i, state := range states {
		require.Equal(t, string(guard.StateOutside), state, "state %d of %v", i, states)
	}
	require.Equal(t, 1, events.count())
}

func TestDeviceGuardFeedsAreScopedToMerchant(t *testing.T) {
	srv, ts := testServer(t)

	center := geofence.Point{Latitude: 9.8965, Longitude: 8.8583}
	for _, merchantID := range []int64{7, 8} {
		require.NoError(t, srv.Settings.SaveGeofence(context.Background(), merchantID, geofence.NewFence(center.Latitude, center.Longitude, 50)))
	}

	conn := dial(t, ts, "/ws/device/guard", url.Values{"merchantId": {"7"}, "deviceId": {"tab-1"}})
	readUntil(t, conn, "guard.session")
	readState(t, conn, guard.StateInside)

	// Another merchant's device with the same id reports from far away.
	far := geofence.Offset(center, 90, 500)
	lat, lon := far.Latitude, far.Longitude
	require.NoError(t, location.Report{Latitude: &lat, Longitude: &lon}.ApplyTo(srv.Registry.Feed(8, "tab-1")))

	time.Sleep(50 * time.Millisecond)
	snap, ok := srv.Sessions.Lookup(7, "tab-1")
	require.True(t, ok)
	require.Equal(t, guard.StateInside, snap.Snapshot.State)
}
