package location

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Feed is a Provider fed by a device pushing its own fixes (over HTTP, MQTT
// or the guard websocket). A device only pushes on its own cadence, so a
// read that cannot be served from cache asks the device for a fix through
// the hooks registered with OnRequest.
type Feed struct {
	mu         sync.Mutex
	last       *Position
	lastErr    *PositionError
	conn       string
	nextID     int
	watchers   map[int]func(Position, error)
	waiters    map[chan struct{}]struct{}
	requesters map[int]func()
	touched    time.Time
	now        func() time.Time
}

func NewFeed() *Feed {
	return &Feed{
		watchers:   make(map[int]func(Position, error)),
		waiters:    make(map[chan struct{}]struct{}),
		requesters: make(map[int]func()),
		touched:    time.Now(),
		now:        time.Now,
	}
}

func (f *Feed) Push(pos Position) {
	if pos.Timestamp.IsZero() {
		pos.Timestamp = f.now()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &pos
	f.lastErr = nil
	f.touched = f.now()
	for _, fn := range f.watchers {
		fn(pos, nil)
	}
	f.wakeLocked()
}

func (f *Feed) PushError(code ErrorCode, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pe := &PositionError{Code: code, Message: message}
	f.lastErr = pe
	f.touched = f.now()
	for _, fn := range f.watchers {
		fn(Position{}, pe)
	}
	f.wakeLocked()
}

func (f *Feed) SetConnectionType(kind string) {
	f.mu.Lock()
	f.conn = strings.ToLower(strings.TrimSpace(kind))
	f.touched = f.now()
	f.mu.Unlock()
}

func (f *Feed) ConnectionType() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn, f.conn != ""
}

// OnRequest registers fn to be called whenever a reader is waiting for a
// fresh fix. fn runs without the feed lock held and may push synchronously.
func (f *Feed) OnRequest(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.requesters[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.requesters, id)
			f.mu.Unlock()
		})
	}
}

// idle reports whether nobody reads the feed and no device wrote to it
// within d.
func (f *Feed) idle(d time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.watchers) > 0 || len(f.waiters) > 0 || len(f.requesters) > 0 {
		return false
	}
	return f.now().Sub(f.touched) >= d
}

func (f *Feed) wakeLocked() {
	for ch := range f.waiters {
		close(ch)
		delete(f.waiters, ch)
	}
}

func (f *Feed) freshLocked(maxAge time.Duration) (Position, bool) {
	if f.last == nil || maxAge <= 0 {
		return Position{}, false
	}
	if f.now().Sub(f.last.Timestamp) > maxAge {
		return Position{}, false
	}
	return *f.last, true
}

// CurrentPosition returns a cached fix when allowed by MaximumAge, otherwise
// it waits for the next push until the timeout elapses.
func (f *Feed) CurrentPosition(ctx context.Context, opts Options) (Position, error) {
	f.mu.Lock()
	if pos, ok := f.freshLocked(opts.MaximumAge); ok {
		f.mu.Unlock()
		return pos, nil
	}
	wake := make(chan struct{})
	f.waiters[wake] = struct{}{}
	requesters := make([]func(), 0, len(f.requesters))
	for _, fn := range f.requesters {
		requesters = append(requesters, fn)
	}
	f.mu.Unlock()

	for _, fn := range requesters {
		fn()
	}

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-wake:
	case <-timeout:
		f.dropWaiter(wake)
		return Position{}, &PositionError{Code: Timeout, Message: "no fix within timeout"}
	case <-ctx.Done():
		f.dropWaiter(wake)
		return Position{}, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastErr != nil {
		return Position{}, f.lastErr
	}
	if f.last == nil {
		return Position{}, &PositionError{Code: PositionUnavailable}
	}
	return *f.last, nil
}

func (f *Feed) dropWaiter(ch chan struct{}) {
	f.mu.Lock()
	delete(f.waiters, ch)
	f.mu.Unlock()
}

func (f *Feed) WatchPosition(opts Options, fn func(Position, error)) (func(), error) {
	if fn == nil {
		return func() {}, nil
	}
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.watchers[id] = fn
	if pos, ok := f.freshLocked(opts.MaximumAge); ok {
		fn(pos, nil)
	}
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.watchers, id)
			f.mu.Unlock()
		})
	}, nil
}

// DeviceKey scopes a device id to its merchant; two merchants may use the
// same device id.
type DeviceKey struct {
	MerchantID int64
	DeviceID   string
}

func NewDeviceKey(merchantID int64, deviceID string) DeviceKey {
	return DeviceKey{MerchantID: merchantID, DeviceID: strings.TrimSpace(deviceID)}
}

type registryEntry struct {
	feed *Feed
	refs int
}

// Registry keeps one Feed per merchant device. Feeds held through Acquire
// stay alive; the rest are evicted by Sweep once idle.
type Registry struct {
	mu        sync.Mutex
	feeds     map[DeviceKey]*registryEntry
	requester func(DeviceKey)
}

func NewRegistry() *Registry {
	return &Registry{feeds: make(map[DeviceKey]*registryEntry)}
}

// SetRequester installs a transport-level fix request (MQTT) used by every
// feed in the registry, including feeds created earlier.
func (r *Registry) SetRequester(fn func(DeviceKey)) {
	r.mu.Lock()
	r.requester = fn
	r.mu.Unlock()
}

func (r *Registry) request(key DeviceKey) {
	r.mu.Lock()
	fn := r.requester
	r.mu.Unlock()
	if fn != nil {
		fn(key)
	}
}

func (r *Registry) entryLocked(key DeviceKey) *registryEntry {
	entry, ok := r.feeds[key]
	if !ok {
		entry = &registryEntry{feed: NewFeed()}
		r.feeds[key] = entry
	}
	return entry
}

// Feed returns the device's feed, creating it on first use.
func (r *Registry) Feed(merchantID int64, deviceID string) *Feed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entryLocked(NewDeviceKey(merchantID, deviceID)).feed
}

// Acquire pins the device's feed until release is called and routes fix
// requests to the registry requester.
func (r *Registry) Acquire(merchantID int64, deviceID string) (*Feed, func()) {
	key := NewDeviceKey(merchantID, deviceID)
	r.mu.Lock()
	entry := r.entryLocked(key)
	entry.refs++
	r.mu.Unlock()

	stop := entry.feed.OnRequest(func() { r.request(key) })
	var once sync.Once
	return entry.feed, func() {
		once.Do(func() {
			stop()
			r.mu.Lock()
			entry.refs--
			r.mu.Unlock()
		})
	}
}

func (r *Registry) Lookup(merchantID int64, deviceID string) (*Feed, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.feeds[NewDeviceKey(merchantID, deviceID)]
	if !ok {
		return nil, false
	}
	return entry.feed, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.feeds)
}

// Sweep drops unpinned feeds that saw no reader and no device write for
// idle, and returns how many were removed.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, entry := range r.feeds {
		if entry.refs > 0 || !entry.feed.idle(idle) {
			continue
		}
		delete(r.feeds, key)
		removed++
	}
	return removed
}

// RunJanitor sweeps every interval until ctx ends.
func (r *Registry) RunJanitor(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 {
		interval = DefaultWatchMaxAge
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(idle)
		}
	}
}
