package location

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultWatchMaxAge   = 60 * time.Second
	watchBufferedSamples = 8
)

// Source adapts a Provider into fail-open samples. It never returns an error:
// every failure becomes an unavailable sample.
type Source struct {
	provider    Provider
	connection  ConnectionReporter
	logger      *zap.Logger
	timeout     time.Duration
	watchMaxAge time.Duration
}

type SourceOption func(*Source)

func WithTimeout(d time.Duration) SourceOption {
	return func(s *Source) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithWatchMaxAge(d time.Duration) SourceOption {
	return func(s *Source) {
		if d >= 0 {
			s.watchMaxAge = d
		}
	}
}

func WithConnectionReporter(r ConnectionReporter) SourceOption {
	return func(s *Source) {
		s.connection = r
	}
}

func NewSource(provider Provider, logger *zap.Logger, opts ...SourceOption) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Source{
		provider:    provider,
		logger:      logger,
		timeout:     DefaultTimeout,
		watchMaxAge: DefaultWatchMaxAge,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) CurrentLocation(ctx context.Context) Sample {
	if s == nil || s.provider == nil {
		return Unavailable(ReasonUnknown)
	}

	opts := Options{EnableHighAccuracy: true, Timeout: s.timeout, MaximumAge: 0}
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pos, err := s.provider.CurrentPosition(reqCtx, opts)
	if err != nil {
		reason := ReasonFor(err)
		if ctx.Err() == nil && reqCtx.Err() != nil {
			reason = ReasonTimeout
		}
		s.logger.Debug("location unavailable", zap.String("reason", string(reason)), zap.Error(err))
		return Unavailable(reason)
	}
	return FromPosition(pos)
}

// WatchLocation starts a continuous watch. It returns nil when the platform
// cannot watch at all.
func (s *Source) WatchLocation() *Watch {
	if s == nil || s.provider == nil {
		return nil
	}

	w := &Watch{updates: make(chan Sample, watchBufferedSamples)}
	opts := Options{EnableHighAccuracy: true, Timeout: s.timeout, MaximumAge: s.watchMaxAge}
	stop, err := s.provider.WatchPosition(opts, func(pos Position, err error) {
		if err != nil {
			w.deliver(Unavailable(ReasonFor(err)))
			return
		}
		w.deliver(FromPosition(pos))
	})
	if err != nil {
		s.logger.Debug("location watch unavailable", zap.Error(err))
		return nil
	}
	w.setStop(stop)
	return w
}

// CheckWiFiConnection returns nil when the connection type is unknown.
func (s *Source) CheckWiFiConnection() *bool {
	if s == nil || s.connection == nil {
		return nil
	}
	kind, ok := s.connection.ConnectionType()
	if !ok {
		return nil
	}
	isWiFi := strings.EqualFold(strings.TrimSpace(kind), "wifi")
	return &isWiFi
}

func ClearLocationWatch(w *Watch) {
	if w != nil {
		w.Clear()
	}
}

type Watch struct {
	mu      sync.Mutex
	updates chan Sample
	stop    func()
	cleared bool
}

func (w *Watch) Updates() <-chan Sample {
	return w.updates
}

func (w *Watch) setStop(stop func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cleared {
		if stop != nil {
			stop()
		}
		return
	}
	w.stop = stop
}

// deliver drops the oldest pending sample when the consumer lags; only the
// freshest readings matter.
func (w *Watch) deliver(sample Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cleared {
		return
	}
	for {
		select {
		case w.updates <- sample:
			return
		default:
		}
		select {
		case <-w.updates:
		default:
		}
	}
}

func (w *Watch) Clear() {
	w.mu.Lock()
	if w.cleared {
		w.mu.Unlock()
		return
	}
	w.cleared = true
	stop := w.stop
	w.stop = nil
	close(w.updates)
	w.mu.Unlock()

	if stop != nil {
		stop()
	}
}
