package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	Channel        = "genfity:floor:orders:signal"
	storageKeyBase = "genfity:floor:orders:new-order-created:"
	storageKeyTTL  = 24 * time.Hour
)

func StorageKey(merchantID int64) string {
	return fmt.Sprintf("%s%d", storageKeyBase, merchantID)
}

// RedisRelay shares refresh tokens between service instances: it records
// the latest token under a per-merchant key and publishes it on Channel.
type RedisRelay struct {
	client *redis.Client
	bus    *Bus
	origin string
	logger *zap.Logger
}

func NewRedisRelay(client *redis.Client, bus *Bus, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{client: client, bus: bus, origin: uuid.NewString(), logger: logger}
}

func (r *RedisRelay) Origin() string {
	return r.origin
}

// Broadcast notifies local subscribers immediately and every other instance
// through Redis.
func (r *RedisRelay) Broadcast(ctx context.Context, merchantID int64) error {
	token := Token{MerchantID: merchantID, At: time.Now(), Origin: r.origin}
	r.bus.Publish(token)

	body, err := json.Marshal(token)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, StorageKey(merchantID), body, storageKeyTTL).Err(); err != nil {
		return fmt.Errorf("store order signal: %w", err)
	}
	if err := r.client.Publish(ctx, Channel, body).Err(); err != nil {
		return fmt.Errorf("publish order signal: %w", err)
	}
	return nil
}

// Last returns the latest token recorded for merchantID, if any.
func (r *RedisRelay) Last(ctx context.Context, merchantID int64) (Token, bool, error) {
	body, err := r.client.Get(ctx, StorageKey(merchantID)).Bytes()
	if err == redis.Nil {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, err
	}
	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return Token{}, false, err
	}
	return token, true, nil
}

// Run forwards tokens published by other instances to the local Bus until
// ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	token, ok := decodeToken(payload)
	if !ok {
		r.logger.Warn("ignoring malformed order signal", zap.String("payload", payload))
		return
	}
	if token.Origin == r.origin {
		return
	}
	r.bus.Publish(token)
}

func decodeToken(payload string) (Token, bool) {
	var token Token
	if err := json.Unmarshal([]byte(payload), &token); err != nil {
		return Token{}, false
	}
	if token.MerchantID <= 0 {
		return Token{}, false
	}
	return token, true
}
