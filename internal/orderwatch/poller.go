package orderwatch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultPollInterval = 5 * time.Second

type Source interface {
	ActiveOrders(ctx context.Context, merchantID int64) ([]Order, error)
}

type SourceFunc func(ctx context.Context, merchantID int64) ([]Order, error)

func (f SourceFunc) ActiveOrders(ctx context.Context, merchantID int64) ([]Order, error) {
	return f(ctx, merchantID)
}

// Poller re-fetches a merchant's active orders on an interval and whenever a
// refresh signal arrives, handing every new batch to OnNew exactly once.
type Poller struct {
	Source     Source
	MerchantID int64
	Interval   time.Duration
	Refresh    <-chan struct{}
	OnNew      func(ctx context.Context, orders []Order)
	OnSnapshot func(ctx context.Context, orders []Order)
	Logger     *zap.Logger

	tracker Tracker
}

func (p *Poller) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// Poll runs one fetch-and-diff cycle. Fetch errors leave the tracked set untouched.
func (p *Poller) Poll(ctx context.Context) ([]Order, error) {
	orders, err := p.Source.ActiveOrders(ctx, p.MerchantID)
	if err != nil {
		return nil, err
	}
	if p.OnSnapshot != nil {
		p.OnSnapshot(ctx, orders)
	}
	fresh := p.tracker.Observe(orders)
	if len(fresh) > 0 {
		p.logger().Info("new orders detected",
			zap.Int64("merchantId", p.MerchantID),
			zap.Int("count", len(fresh)),
		)
		if p.OnNew != nil {
			p.OnNew(ctx, fresh)
		}
	}
	return fresh, nil
}

func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.poll(ctx)
	refresh := p.Refresh
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		case _, ok := <-refresh:
			if !ok {
				refresh = nil
				continue
			}
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
		p.logger().Warn("active orders fetch failed", zap.Int64("merchantId", p.MerchantID), zap.Error(err))
	}
}
