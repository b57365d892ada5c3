package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"genfity-floor-services/internal/signal"
)

const (
	EventsExchange   = "genfity.events"
	FloorOrdersQueue = "genfity.floor.orders"

	EventOrderCreated       = "order.created"
	EventDeviceLeftPremises = "device.left_premises"
)

// EnsureFloorTopology declares the events exchange and the queue that
// receives order creation events for this service.
func EnsureFloorTopology(qc *Client) error {
	if qc == nil {
		return nil
	}
	if err := qc.EnsureExchange(EventsExchange); err != nil {
		return err
	}
	if _, err := qc.EnsureQueue(FloorOrdersQueue); err != nil {
		return err
	}
	return qc.BindQueue(FloorOrdersQueue, EventsExchange, EventOrderCreated)
}

// merchantRef accepts both numeric and string merchant ids; publishers in
// the order service are not consistent about it.
type merchantRef int64

func (m *merchantRef) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "" || text == "null" {
		*m = 0
		return nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return err
	}
	*m = merchantRef(v)
	return nil
}

type orderCreatedEvent struct {
	Type       string      `json:"type"`
	MerchantID merchantRef `json:"merchantId"`
}

var errMissingMerchant = errors.New("order event without merchantId")

// OrderCreatedHandler turns order.created events into refresh broadcasts.
// Other event types are acknowledged and ignored.
func OrderCreatedHandler(b signal.Broadcaster) HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var evt orderCreatedEvent
		if err := json.Unmarshal(body, &evt); err != nil {
			return err
		}
		if evt.Type != EventOrderCreated {
			return nil
		}
		if evt.MerchantID <= 0 {
			return errMissingMerchant
		}
		return b.Broadcast(ctx, int64(evt.MerchantID))
	}
}

type DeviceLeftPremisesEvent struct {
	Type           string    `json:"type"`
	MerchantID     int64     `json:"merchantId"`
	DeviceID       string    `json:"deviceId"`
	SessionID      string    `json:"sessionId"`
	Latitude       *float64  `json:"latitude"`
	Longitude      *float64  `json:"longitude"`
	AccuracyMeters *float64  `json:"accuracy"`
	DistanceMeters *float64  `json:"distanceMeters"`
	At             time.Time `json:"at"`
}

func (c *Client) PublishDeviceLeftPremises(ctx context.Context, evt DeviceLeftPremisesEvent) error {
	evt.Type = EventDeviceLeftPremises
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	return c.PublishJSON(ctx, EventsExchange, EventDeviceLeftPremises, evt)
}
