package signal

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// OrdersChannel is the NOTIFY channel the order service writes merchant ids to.
const OrdersChannel = "orders_updates"

// PGListener turns Postgres NOTIFY payloads into bus tokens.
type PGListener struct {
	DB      *pgxpool.Pool
	Bus     *Bus
	Channel string
	Logger  *zap.Logger
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// ParseMerchantPayload reads a NOTIFY payload holding a merchant id.
func ParseMerchantPayload(payload string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Run reconnects with exponential backoff until ctx is done.
func (l *PGListener) Run(ctx context.Context) error {
	channel := l.Channel
	if channel == "" {
		channel = OrdersChannel
	}
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	backoff := time.Second
	wait := func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = minDuration(backoff*2, 30*time.Second)
		return nil
	}

	for {
		conn, err := l.DB.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("orders LISTEN acquire failed", zap.Error(err))
			if err := wait(); err != nil {
				return err
			}
			continue
		}

		if _, err = conn.Exec(ctx, "listen "+channel); err != nil {
			conn.Release()
			logger.Warn("orders LISTEN failed", zap.Error(err))
			if err := wait(); err != nil {
				return err
			}
			continue
		}

		backoff = time.Second
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				break
			}
			merchantID, ok := ParseMerchantPayload(n.Payload)
			if !ok {
				logger.Debug("ignoring orders notification", zap.String("payload", n.Payload))
				continue
			}
			l.Bus.Publish(Token{MerchantID: merchantID, At: time.Now(), Origin: "postgres"})
		}

		conn.Release()
		if err := wait(); err != nil {
			return err
		}
	}
}
