package settings

import (
	"context"
	"sort"
	"sync"

	"genfity-floor-services/internal/geofence"
	"genfity-floor-services/internal/preorder"
)

// Store persists per-merchant geofence and pre-order settings. Missing
// records are not errors: readers get the unconfigured defaults.
type Store interface {
	Geofence(ctx context.Context, merchantID int64) (geofence.Fence, error)
	SaveGeofence(ctx context.Context, merchantID int64, fence geofence.Fence) error
	ClearGeofence(ctx context.Context, merchantID int64) error
	PreOrderWindow(ctx context.Context, merchantID int64) (preorder.Window, error)
	SavePreOrderWindow(ctx context.Context, merchantID int64, w preorder.Window) error
}

// Defaults supplies the values returned for merchants without records.
type Defaults struct {
	RadiusMeters float64
}

func (d Defaults) fence() geofence.Fence {
	f := geofence.Unconfigured()
	if d.RadiusMeters > 0 {
		f.RadiusMeters = d.RadiusMeters
	}
	return f
}

func cloneWindow(w preorder.Window) preorder.Window {
	days := append(make([]int, 0, len(w.DaysOfWeek)), w.DaysOfWeek...)
	sort.Ints(days)
	w.DaysOfWeek = days
	return w
}

type MemoryStore struct {
	defaults Defaults

	mu      sync.RWMutex
	fences  map[int64]geofence.Fence
	windows map[int64]preorder.Window
}

func NewMemoryStore(defaults Defaults) *MemoryStore {
	return &MemoryStore{
		defaults: defaults,
		fences:   make(map[int64]geofence.Fence),
		windows:  make(map[int64]preorder.Window),
	}
}

func (s *MemoryStore) Geofence(ctx context.Context, merchantID int64) (geofence.Fence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.fences[merchantID]; ok {
		return f, nil
	}
	return s.defaults.fence(), nil
}

func (s *MemoryStore) SaveGeofence(ctx context.Context, merchantID int64, fence geofence.Fence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := fence.Center(); ok {
		fence = geofence.NewFence(c.Latitude, c.Longitude, fence.RadiusMeters)
	}
	s.fences[merchantID] = fence
	return nil
}

func (s *MemoryStore) ClearGeofence(ctx context.Context, merchantID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fences, merchantID)
	return nil
}

func (s *MemoryStore) PreOrderWindow(ctx context.Context, merchantID int64) (preorder.Window, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w, ok := s.windows[merchantID]; ok {
		return cloneWindow(w), nil
	}
	return preorder.Disabled(), nil
}

func (s *MemoryStore) SavePreOrderWindow(ctx context.Context, merchantID int64, w preorder.Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[merchantID] = cloneWindow(w)
	return nil
}
