package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"genfity-floor-services/internal/config"
	"genfity-floor-services/internal/guard"
	"genfity-floor-services/internal/location"
	"genfity-floor-services/internal/orderwatch"
	"genfity-floor-services/internal/queue"
	"genfity-floor-services/internal/settings"
	"genfity-floor-services/internal/signal"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventPublisher is satisfied by *queue.Client.
type EventPublisher interface {
	PublishDeviceLeftPremises(ctx context.Context, evt queue.DeviceLeftPremisesEvent) error
}

type Server struct {
	Logger   *zap.Logger
	Config   config.Config
	Settings settings.Store
	Registry *location.Registry
	Sessions *guard.Sessions
	Bus      *signal.Bus
	Orders   orderwatch.Source
	Events   EventPublisher
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

type wsRealtimeClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsRealtimeClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(value)
}

func (c *wsRealtimeClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

type clientMessage struct {
	Type           string `json:"type"`
	State          string `json:"state"`
	Permission     string `json:"permission"`
	ConnectionType string `json:"connectionType"`
}

// readLoop hands every text frame to handle until the peer goes away.
// Pongs extend the read deadline to two heartbeat intervals.
func (s *Server) readLoop(client *wsRealtimeClient, handle func(msg clientMessage, raw []byte)) <-chan struct{} {
	done := make(chan struct{})
	heartbeat := s.Config.WSHeartbeatInterval
	if heartbeat > 0 {
		_ = client.conn.SetReadDeadline(time.Now().Add(2 * heartbeat))
		client.conn.SetPongHandler(func(string) error {
			return client.conn.SetReadDeadline(time.Now().Add(2 * heartbeat))
		})
	}
	go func() {
		defer close(done)
		for {
			_, data, err := client.conn.ReadMessage()
			if err != nil {
				return
			}
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = client.writeJSON(map[string]any{"type": "error", "message": "invalid message"})
				continue
			}
			handle(msg, data)
		}
	}()
	return done
}

// keepAlive pings the client every heartbeat interval until ctx ends.
func (s *Server) keepAlive(ctx context.Context, client *wsRealtimeClient) {
	heartbeat := s.Config.WSHeartbeatInterval
	if heartbeat <= 0 {
		return
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.ping(); err != nil {
				_ = client.conn.Close()
				return
			}
		}
	}
}

func parseInt64(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
