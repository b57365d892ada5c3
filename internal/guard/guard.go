package guard

import (
	"context"
	"sync"
	"time"

	"genfity-floor-services/internal/geofence"
	"genfity-floor-services/internal/location"

	"go.uber.org/zap"
)

type State string

const (
	StateChecking State = "CHECKING"
	StateInside   State = "INSIDE"
	StateOutside  State = "OUTSIDE"
)

const DefaultRecheckInterval = 30 * time.Second

type Trigger string

const (
	TriggerInitial Trigger = "initial"
	TriggerWatch   Trigger = "watch"
	TriggerRecheck Trigger = "recheck"
)

type Snapshot struct {
	State          State           `json:"state"`
	Reason         location.Reason `json:"reason,omitempty"`
	WiFi           *bool           `json:"wifi,omitempty"`
	Sample         location.Sample `json:"sample"`
	DistanceMeters *float64        `json:"distanceMeters,omitempty"`
	Trigger        Trigger         `json:"trigger"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// FenceLoader reads the current fence; it is consulted on every evaluation.
type FenceLoader func(ctx context.Context) (geofence.Fence, error)

type Options struct {
	RecheckInterval time.Duration
	OnOutside       func(location.Sample, Snapshot)
	OnChange        func(Snapshot)
}

// Guard keeps a device in INSIDE or OUTSIDE based on its location, failing
// open whenever the location cannot be determined.
type Guard struct {
	source    *location.Source
	loadFence FenceLoader
	evaluator *geofence.Evaluator
	logger    *zap.Logger
	interval  time.Duration
	onOutside func(location.Sample, Snapshot)
	onChange  func(Snapshot)

	mu       sync.Mutex
	snapshot Snapshot
	stopped  bool
}

func New(source *location.Source, loadFence FenceLoader, logger *zap.Logger, opts Options) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.RecheckInterval
	if interval <= 0 {
		interval = DefaultRecheckInterval
	}
	return &Guard{
		source:    source,
		loadFence: loadFence,
		evaluator: geofence.NewEvaluator(logger),
		logger:    logger,
		interval:  interval,
		onOutside: opts.OnOutside,
		onChange:  opts.OnChange,
		snapshot:  Snapshot{State: StateChecking, UpdatedAt: time.Now()},
	}
}

func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot
}

func (g *Guard) State() State {
	return g.Snapshot().State
}

// Run blocks until ctx is cancelled. The watch handle and the re-check
// ticker are both released before Run returns.
func (g *Guard) Run(ctx context.Context) error {
	watch := g.source.WatchLocation()
	ticker := time.NewTicker(g.interval)

	var wg sync.WaitGroup
	defer func() {
		ticker.Stop()
		location.ClearLocationWatch(watch)
		wg.Wait()
		g.mu.Lock()
		g.stopped = true
		g.mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		g.Check(ctx, TriggerInitial)
	}()

	var updates <-chan location.Sample
	if watch != nil {
		updates = watch.Updates()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			g.Apply(ctx, sample, TriggerWatch)
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				g.Check(ctx, TriggerRecheck)
			}()
		}
	}
}

// Check takes one fresh location reading and applies it.
func (g *Guard) Check(ctx context.Context, trigger Trigger) Snapshot {
	sample := g.source.CurrentLocation(ctx)
	if ctx.Err() != nil {
		return g.Snapshot()
	}
	return g.Apply(ctx, sample, trigger)
}

// Apply evaluates sample and records the outcome. Concurrent callers are
// last-write-wins.
func (g *Guard) Apply(ctx context.Context, sample location.Sample, trigger Trigger) Snapshot {
	next := Snapshot{Sample: sample, Trigger: trigger, UpdatedAt: time.Now()}

	if sample.Unavailable || sample.Latitude == nil || sample.Longitude == nil {
		next.State = StateInside
		next.Reason = sample.Reason
		if next.Reason == "" {
			next.Reason = location.ReasonUnknown
		}
		next.WiFi = g.source.CheckWiFiConnection()
		if next.WiFi != nil && *next.WiFi {
			g.logger.Debug("location unavailable; wifi connected", zap.String("reason", string(next.Reason)))
		} else {
			g.logger.Info("location unavailable; allowing access", zap.String("reason", string(next.Reason)))
		}
	} else {
		fence := g.fence(ctx)
		res := g.evaluator.Evaluate(*sample.Latitude, *sample.Longitude, fence)
		next.DistanceMeters = res.DistanceMeters
		next.State = StateOutside
		if res.Inside {
			next.State = StateInside
		}
	}

	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return next
	}
	prev := g.snapshot.State
	g.snapshot = next
	g.mu.Unlock()

	if g.onChange != nil {
		g.onChange(next)
	}
	if next.State == StateOutside && prev != StateOutside && g.onOutside != nil {
		g.onOutside(sample, next)
	}
	return next
}

func (g *Guard) fence(ctx context.Context) geofence.Fence {
	if g.loadFence == nil {
		return geofence.Unconfigured()
	}
	fence, err := g.loadFence(ctx)
	if err != nil {
		g.logger.Warn("geofence load failed; treating as unconfigured", zap.Error(err))
		return geofence.Unconfigured()
	}
	return fence
}
