package alert

import (
	"context"
	"sync"

	"genfity-floor-services/internal/orderwatch"

	"go.uber.org/zap"
)

// Dispatcher plays the chime and shows one notification per new-order batch.
// Failures are logged and never returned.
type Dispatcher struct {
	Audio    *AudioSink
	Fallback func(ctx context.Context, seq Sequence) error
	Notifier Notifier
	Logger   *zap.Logger

	mu      sync.Mutex
	pending *Notification
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d *Dispatcher) Dispatch(ctx context.Context, batch []orderwatch.Order) {
	if len(batch) == 0 {
		return
	}
	d.playSound(ctx)
	d.notify(ctx, NewOrderNotification(batch))
}

func (d *Dispatcher) playSound(ctx context.Context) {
	var err error
	if d.Audio != nil {
		err = d.Audio.PlayTones(ctx, DefaultSequence())
		if err == nil {
			return
		}
	} else {
		err = ErrUnarmed
	}
	d.logger().Debug("primary chime failed", zap.Error(err))

	if d.Fallback == nil {
		return
	}
	if ferr := d.Fallback(ctx, FallbackSequence()); ferr != nil {
		d.logger().Warn("notification sound failed", zap.Error(err), zap.NamedError("fallbackError", ferr))
	}
}

func (d *Dispatcher) notify(ctx context.Context, n Notification) {
	if d.Notifier == nil {
		return
	}
	switch d.Notifier.Permission() {
	case PermissionGranted:
		if err := d.Notifier.Show(ctx, n); err != nil {
			d.logger().Warn("desktop notification failed", zap.Error(err))
		}
	case PermissionDenied:
		d.logger().Debug("desktop notifications denied")
	default:
		d.mu.Lock()
		d.pending = &n
		d.mu.Unlock()
		if err := d.Notifier.RequestPermission(ctx); err != nil {
			d.logger().Warn("notification permission request failed", zap.Error(err))
		}
	}
}

// PermissionChanged delivers the notification held back while permission
// was being requested.
func (d *Dispatcher) PermissionChanged(ctx context.Context, p Permission) {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	if pending == nil || p != PermissionGranted || d.Notifier == nil {
		return
	}
	if err := d.Notifier.Show(ctx, *pending); err != nil {
		d.logger().Warn("desktop notification failed", zap.Error(err))
	}
}
