package mqttbridge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"genfity-floor-services/internal/location"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type Config struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

type Bridge struct {
	client   mqtt.Client
	prefix   string
	registry *location.Registry
	logger   *zap.Logger
}

func New(cfg Config, registry *location.Registry, logger *zap.Logger) (*Bridge, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	b := &Bridge{
		prefix:   strings.TrimSuffix(cfg.TopicPrefix, "/"),
		registry: registry,
		logger:   logger,
	}
	// Subscriptions are restored on every reconnect.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if err := b.subscribe(c); err != nil {
			logger.Warn("mqtt subscribe failed", zap.Error(err))
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})

	b.client = mqtt.NewClient(opts)
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	registry.SetRequester(b.RequestFix)
	return b, nil
}

const (
	kindLocation   = "location"
	kindConnection = "connection"
	kindRequest    = "request"
)

// RequestTopic is where a device listens for fix requests.
func RequestTopic(prefix string, key location.DeviceKey) string {
	return fmt.Sprintf("%s/%d/%s/%s", strings.TrimSuffix(prefix, "/"), key.MerchantID, key.DeviceID, kindRequest)
}

// RequestFix asks the device for a fresh fix. It does not wait for the
// broker; the reply arrives on the location topic.
func (b *Bridge) RequestFix(key location.DeviceKey) {
	if b.client == nil {
		return
	}
	b.client.Publish(RequestTopic(b.prefix, key), 0, false, []byte(`{"type":"location.request"}`))
}

func (b *Bridge) subscribe(c mqtt.Client) error {
	filters := map[string]byte{
		b.prefix + "/+/+/" + kindLocation:   1,
		b.prefix + "/+/+/" + kindConnection: 1,
	}
	token := c.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		b.Handle(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to device topics: %w", token.Error())
	}
	return nil
}

// connectionReport is published on <prefix>/<merchantId>/<deviceId>/connection.
type connectionReport struct {
	Type string `json:"type"`
}

// Handle routes one message to its device feed. Bad messages are logged and dropped.
func (b *Bridge) Handle(topic string, payload []byte) {
	key, kind, ok := DeviceFromTopic(b.prefix, topic)
	if !ok {
		b.logger.Debug("ignoring mqtt topic", zap.String("topic", topic))
		return
	}
	if kind == kindConnection {
		var conn connectionReport
		if err := json.Unmarshal(payload, &conn); err != nil || strings.TrimSpace(conn.Type) == "" {
			b.logger.Warn("invalid connection payload", zap.Int64("merchantId", key.MerchantID), zap.String("deviceId", key.DeviceID))
			return
		}
		b.registry.Feed(key.MerchantID, key.DeviceID).SetConnectionType(conn.Type)
		return
	}
	var report location.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		b.logger.Warn("invalid location payload", zap.String("deviceId", key.DeviceID), zap.Error(err))
		return
	}
	if err := report.ApplyTo(b.registry.Feed(key.MerchantID, key.DeviceID)); err != nil {
		b.logger.Warn("rejected location report", zap.String("deviceId", key.DeviceID), zap.Error(err))
	}
}

func (b *Bridge) Close() {
	if b.client != nil {
		b.client.Disconnect(250)
	}
}

// DeviceFromTopic splits <prefix>/<merchantId>/<deviceId>/<kind> where
// kind is "location" or "connection".
func DeviceFromTopic(prefix, topic string) (location.DeviceKey, string, bool) {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	if !strings.HasPrefix(topic, prefix) {
		return location.DeviceKey{}, "", false
	}
	parts := strings.Split(strings.TrimPrefix(topic, prefix), "/")
	if len(parts) != 3 || strings.TrimSpace(parts[1]) == "" {
		return location.DeviceKey{}, "", false
	}
	merchantID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || merchantID <= 0 {
		return location.DeviceKey{}, "", false
	}
	if parts[2] != kindLocation && parts[2] != kindConnection {
		return location.DeviceKey{}, "", false
	}
	return location.NewDeviceKey(merchantID, parts[1]), parts[2], true
}
