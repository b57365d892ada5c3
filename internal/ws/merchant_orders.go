package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"genfity-floor-services/internal/alert"
	"genfity-floor-services/internal/auth"
	"genfity-floor-services/internal/middleware"
	"genfity-floor-services/internal/orderwatch"
	"genfity-floor-services/internal/signal"

	"go.uber.org/zap"
)

var errScreenClosed = errors.New("screen disconnected")

// screen is the connected kitchen or waiter display. It stands in for the
// device's audio context and notification API; the socket carries the
// commands and the client reports state changes back.
type screen struct {
	client *wsRealtimeClient

	mu         sync.Mutex
	audio      alert.OutputState
	permission alert.Permission
	closed     bool
}

func (sc *screen) State() alert.OutputState {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return alert.OutputClosed
	}
	return sc.audio
}

func (sc *screen) setAudioState(state alert.OutputState) {
	sc.mu.Lock()
	sc.audio = state
	sc.mu.Unlock()
}

func (sc *screen) Resume(ctx context.Context) error {
	if err := sc.send(map[string]any{"type": "audio.resume"}); err != nil {
		return err
	}
	sc.setAudioState(alert.OutputRunning)
	return nil
}

func (sc *screen) Schedule(ctx context.Context, seq alert.Sequence) error {
	return sc.send(map[string]any{"type": "alert.sound", "tones": seq.Wire()})
}

// PlayFallback is the single-beep path used when the chime fails.
func (sc *screen) PlayFallback(ctx context.Context, seq alert.Sequence) error {
	return sc.send(map[string]any{"type": "alert.sound", "fallback": true, "tones": seq.Wire()})
}

func (sc *screen) Permission() alert.Permission {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.permission
}

func (sc *screen) setPermission(p alert.Permission) {
	sc.mu.Lock()
	sc.permission = p
	sc.mu.Unlock()
}

func (sc *screen) RequestPermission(ctx context.Context) error {
	return sc.send(map[string]any{"type": "notification.permission.request"})
}

func (sc *screen) Show(ctx context.Context, n alert.Notification) error {
	return sc.send(map[string]any{
		"type":          "notification.show",
		"notification":  n,
		"autoDismissMs": n.AutoDismiss.Milliseconds(),
	})
}

func (sc *screen) send(message any) error {
	sc.mu.Lock()
	closed := sc.closed
	sc.mu.Unlock()
	if closed {
		return errScreenClosed
	}
	return sc.client.writeJSON(message)
}

func (sc *screen) close() {
	sc.mu.Lock()
	sc.closed = true
	sc.mu.Unlock()
}

// MerchantOrdersWS streams active orders to a merchant screen and raises the
// new-order alert whenever a poll finds orders it has not seen before.
func (s *Server) MerchantOrdersWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	token := auth.TokenFromQuery(r.URL.Query().Get("token"))
	authCtx, authErr := middleware.AuthenticateMerchant(token, s.Config.JWTSecret, r.URL.Path, r.Method)
	if authErr != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}
	if s.Orders == nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "orders unavailable"})
		return
	}
	merchantID := authCtx.MerchantID

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := &wsRealtimeClient{conn: conn}
	logger := s.logger().With(zap.Int64("merchantId", merchantID))
	sc := &screen{
		client:     client,
		audio:      alert.OutputSuspended,
		permission: alert.ParsePermission(r.URL.Query().Get("notificationPermission")),
	}
	defer sc.close()

	dispatcher := &alert.Dispatcher{
		Audio: alert.NewAudioSink(func() (alert.AudioOutput, error) {
			return sc, nil
		}),
		Fallback: sc.PlayFallback,
		Notifier: sc,
		Logger:   logger,
	}

	var refresh <-chan struct{}
	if s.Bus != nil {
		tokens, unsubscribe := s.Bus.Subscribe(merchantID)
		defer unsubscribe()
		refresh = signal.Refresh(ctx, tokens)
	}

	poller := &orderwatch.Poller{
		Source:     s.Orders,
		MerchantID: merchantID,
		Interval:   s.Config.OrderPollInterval,
		Refresh:    refresh,
		Logger:     logger,
		OnSnapshot: func(ctx context.Context, orders []orderwatch.Order) {
			_ = client.writeJSON(map[string]any{"type": "orders.state", "data": orders})
		},
		OnNew: func(ctx context.Context, orders []orderwatch.Order) {
			_ = client.writeJSON(map[string]any{"type": "orders.new", "data": orders})
			dispatcher.Dispatch(ctx, orders)
		},
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		s.keepAlive(ctx, client)
	}()

	clientClosed := s.readLoop(client, func(msg clientMessage, _ []byte) {
		switch msg.Type {
		case "audio.unlock":
			if err := dispatcher.Audio.Arm(); err != nil {
				logger.Warn("audio unlock failed", zap.Error(err))
				return
			}
			state := alert.OutputRunning
			if msg.State != "" {
				state = alert.OutputState(msg.State)
			}
			sc.setAudioState(state)
			_ = client.writeJSON(map[string]any{"type": "audio.armed", "state": state})
		case "audio.state":
			sc.setAudioState(alert.OutputState(msg.State))
		case "notification.permission":
			p := alert.ParsePermission(msg.Permission)
			sc.setPermission(p)
			dispatcher.PermissionChanged(ctx, p)
		default:
			logger.Debug("ignoring screen message", zap.String("type", msg.Type))
		}
	})

	select {
	case <-clientClosed:
	case <-ctx.Done():
	}
	cancel()
	wg.Wait()
}
