package location

import (
	"context"
	"errors"
	"testing"
	"time"
)

type errProvider struct {
	err error
}

func (p errProvider) CurrentPosition(ctx context.Context, opts Options) (Position, error) {
	return Position{}, p.err
}

func (p errProvider) WatchPosition(opts Options, fn func(Position, error)) (func(), error) {
	return nil, p.err
}

type optsProvider struct {
	current Options
	watch   Options
}

func (p *optsProvider) CurrentPosition(ctx context.Context, opts Options) (Position, error) {
	p.current = opts
	return Position{Latitude: 1, Longitude: 2, AccuracyMeters: 5}, nil
}

func (p *optsProvider) WatchPosition(opts Options, fn func(Position, error)) (func(), error) {
	p.watch = opts
	return func() {}, nil
}

type staticConnection struct {
	kind string
	ok   bool
}

func (c staticConnection) ConnectionType() (string, bool) { return c.kind, c.ok }

func TestCurrentLocationFailOpen(t *testing.T) {
	cases := []struct {
		name   string
		source *Source
		reason Reason
	}{
		{name: "no provider", source: NewSource(nil, nil), reason: ReasonUnknown},
		{name: "nil source", source: nil, reason: ReasonUnknown},
		{name: "permission denied", source: NewSource(errProvider{&PositionError{Code: PermissionDenied}}, nil), reason: ReasonPermissionDenied},
		{name: "unavailable", source: NewSource(errProvider{&PositionError{Code: PositionUnavailable}}, nil), reason: ReasonPositionUnavailable},
		{name: "timeout code", source: NewSource(errProvider{&PositionError{Code: Timeout}}, nil), reason: ReasonTimeout},
		{name: "unsupported", source: NewSource(errProvider{ErrUnsupported}, nil), reason: ReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.source.CurrentLocation(context.Background())
			if !s.Unavailable || s.Reason != tc.reason {
				t.Fatalf("expected unavailable sample with reason %q, got %+v", tc.reason, s)
			}
			if s.Latitude != nil || s.Longitude != nil {
				t.Fatalf("expected no coordinates, got %+v", s)
			}
		})
	}
}

func TestCurrentLocationOptions(t *testing.T) {
	p := &optsProvider{}
	src := NewSource(p, nil)

	s := src.CurrentLocation(context.Background())
	if s.Unavailable || *s.Latitude != 1 || *s.AccuracyMeters != 5 {
		t.Fatalf("unexpected sample %+v", s)
	}
	want := Options{EnableHighAccuracy: true, Timeout: 10 * time.Second, MaximumAge: 0}
	if p.current != want {
		t.Fatalf("expected current options %+v, got %+v", want, p.current)
	}

	w := src.WatchLocation()
	if w == nil {
		t.Fatalf("expected a watch")
	}
	defer w.Clear()
	if p.watch.MaximumAge != 60*time.Second || !p.watch.EnableHighAccuracy {
		t.Fatalf("unexpected watch options %+v", p.watch)
	}
}

func TestCurrentLocationTimesOut(t *testing.T) {
	src := NewSource(NewFeed(), nil, WithTimeout(20*time.Millisecond))
	s := src.CurrentLocation(context.Background())
	if !s.Unavailable || s.Reason != ReasonTimeout {
		t.Fatalf("expected timeout sample, got %+v", s)
	}
}

func TestCurrentLocationWaitsForPush(t *testing.T) {
	feed := NewFeed()
	src := NewSource(feed, nil, WithTimeout(2*time.Second))

	go func() {
		time.Sleep(20 * time.Millisecond)
		feed.Push(Position{Latitude: 9.8965, Longitude: 8.8583})
	}()

	s := src.CurrentLocation(context.Background())
	if s.Unavailable || *s.Latitude != 9.8965 {
		t.Fatalf("expected pushed fix, got %+v", s)
	}
}

func TestCurrentLocationIgnoresCachedFix(t *testing.T) {
	feed := NewFeed()
	feed.Push(Position{Latitude: 1, Longitude: 1})
	src := NewSource(feed, nil, WithTimeout(20*time.Millisecond))

	if s := src.CurrentLocation(context.Background()); !s.Unavailable {
		t.Fatalf("a cached fix must not satisfy a MaxAge=0 read, got %+v", s)
	}
}

func TestCurrentLocationRequestsFix(t *testing.T) {
	feed := NewFeed()
	requests := 0
	stop := feed.OnRequest(func() {
		requests++
		feed.Push(Position{Latitude: 5, Longitude: 6})
	})
	src := NewSource(feed, nil, WithTimeout(time.Second))

	s := src.CurrentLocation(context.Background())
	if s.Unavailable || *s.Latitude != 5 {
		t.Fatalf("expected requested fix, got %+v", s)
	}
	if requests != 1 {
		t.Fatalf("expected one request, got %d", requests)
	}

	// A cached read never asks the device.
	if _, err := feed.CurrentPosition(context.Background(), Options{MaximumAge: time.Minute}); err != nil {
		t.Fatalf("expected cached fix: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected cached read to skip the request, got %d", requests)
	}

	stop()
	stop()
	if s := NewSource(feed, nil, WithTimeout(20*time.Millisecond)).CurrentLocation(context.Background()); !s.Unavailable {
		t.Fatalf("expected timeout after the requester is removed, got %+v", s)
	}
	if requests != 1 {
		t.Fatalf("expected no request after stop, got %d", requests)
	}
}

func TestWatchLocationDeliversFailOpenSamples(t *testing.T) {
	feed := NewFeed()
	src := NewSource(feed, nil)
	w := src.WatchLocation()
	if w == nil {
		t.Fatalf("expected a watch")
	}
	defer ClearLocationWatch(w)

	feed.Push(Position{Latitude: 3, Longitude: 4})
	feed.PushError(PermissionDenied, "denied")

	first := <-w.Updates()
	if first.Unavailable || *first.Latitude != 3 {
		t.Fatalf("expected fix first, got %+v", first)
	}
	second := <-w.Updates()
	if !second.Unavailable || second.Reason != ReasonPermissionDenied {
		t.Fatalf("expected permission denied sample, got %+v", second)
	}
}

func TestWatchLocationReusesFreshFix(t *testing.T) {
	feed := NewFeed()
	feed.Push(Position{Latitude: 7, Longitude: 8})
	w := NewSource(feed, nil).WatchLocation()
	if w == nil {
		t.Fatalf("expected a watch")
	}
	defer w.Clear()

	if s := <-w.Updates(); *s.Latitude != 7 {
		t.Fatalf("expected cached fix, got %+v", s)
	}
}

func TestWatchLocationUnsupported(t *testing.T) {
	if NewSource(nil, nil).WatchLocation() != nil {
		t.Fatalf("expected nil watch without provider")
	}
	if NewSource(errProvider{ErrUnsupported}, nil).WatchLocation() != nil {
		t.Fatalf("expected nil watch when unsupported")
	}
}

func TestClearLocationWatch(t *testing.T) {
	ClearLocationWatch(nil)

	feed := NewFeed()
	w := NewSource(feed, nil).WatchLocation()
	if w == nil {
		t.Fatalf("expected a watch")
	}

	ClearLocationWatch(w)
	ClearLocationWatch(w)

	feed.Push(Position{Latitude: 1, Longitude: 1})
	if _, open := <-w.Updates(); open {
		t.Fatalf("expected no samples after clear")
	}
}

func TestCheckWiFiConnection(t *testing.T) {
	if NewSource(nil, nil).CheckWiFiConnection() != nil {
		t.Fatalf("expected unknown without reporter")
	}
	if NewSource(nil, nil, WithConnectionReporter(staticConnection{})).CheckWiFiConnection() != nil {
		t.Fatalf("expected unknown when reporter has no type")
	}

	wifi := NewSource(nil, nil, WithConnectionReporter(staticConnection{kind: "WiFi", ok: true})).CheckWiFiConnection()
	if wifi == nil || !*wifi {
		t.Fatalf("expected wifi")
	}
	cell := NewSource(nil, nil, WithConnectionReporter(staticConnection{kind: "cellular", ok: true})).CheckWiFiConnection()
	if cell == nil || *cell {
		t.Fatalf("expected non-wifi")
	}
}

func TestReasonFor(t *testing.T) {
	cases := []struct {
		got  Reason
		want Reason
	}{
		{ReasonFor(context.DeadlineExceeded), ReasonTimeout},
		{ReasonFor(errors.New("boom")), ReasonUnknown},
		{ReasonFor(&PositionError{Code: 99}), ReasonUnknown},
		{ParseReason(" PERMISSION_DENIED "), ReasonPermissionDenied},
		{ParseReason("nope"), ReasonUnknown},
	}
	for i, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("case %d: expected %q, got %q", i, tc.want, tc.got)
		}
	}
}
