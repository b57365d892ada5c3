package middleware

import (
	"bufio"
	"errors"
	"math"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const latencyWindowSize = 200

// telemetryRecorder captures status and size. A hijacked response is a
// websocket session and is logged once it ends.
type telemetryRecorder struct {
	response http.ResponseWriter
	status   int
	bytes    int
	upgraded bool
}

func (r *telemetryRecorder) Header() http.Header {
	return r.response.Header()
}

func (r *telemetryRecorder) WriteHeader(status int) {
	r.status = status
	r.response.WriteHeader(status)
}

func (r *telemetryRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.response.Write(data)
	r.bytes += n
	return n, err
}

func (r *telemetryRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.response.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not support hijacking")
	}
	conn, rw, err := hj.Hijack()
	if err == nil {
		r.upgraded = true
		r.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

func (r *telemetryRecorder) Flush() {
	if f, ok := r.response.(http.Flusher); ok {
		f.Flush()
	}
}

// routeLatency keeps the last latencyWindowSize durations per route in a
// ring buffer.
type routeLatency struct {
	mu     sync.Mutex
	routes map[string][]int64
	next   map[string]int
}

func newRouteLatency() *routeLatency {
	return &routeLatency{routes: make(map[string][]int64), next: make(map[string]int)}
}

func (l *routeLatency) observe(route string, ms int64) (p50, p95 int64) {
	l.mu.Lock()
	ring := l.routes[route]
	if len(ring) < latencyWindowSize {
		ring = append(ring, ms)
	} else {
		i := l.next[route]
		ring[i] = ms
		l.next[route] = (i + 1) % latencyWindowSize
	}
	l.routes[route] = ring
	sorted := append([]int64(nil), ring...)
	l.mu.Unlock()

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return percentile(sorted, 0.5), percentile(sorted, 0.95)
}

func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// Telemetry logs one line per request with per-route p50/p95 latency, and
// one line per websocket session when it closes. Health probes log at debug.
func Telemetry(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	latency := newRouteLatency()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &telemetryRecorder{response: w}

			next.ServeHTTP(recorder, r)

			duration := time.Since(start)
			route := routeOf(r)
			requestID := GetRequestID(r.Context())
			if requestID == "" {
				requestID = readRequestID(r)
			}

			if recorder.upgraded {
				logger.Info("ws_session",
					zap.String("route", route),
					zap.String("requestId", requestID),
					zap.Duration("duration", duration),
				)
				return
			}

			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}
			p50, p95 := latency.observe(r.Method+" "+route, duration.Milliseconds())
			log := logger.Info
			if route == "/health" {
				log = logger.Debug
			}
			log("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("routePattern", route),
				zap.String("requestId", requestID),
				zap.Int("status", status),
				zap.Int("bytes", recorder.bytes),
				zap.Int64("duration_ms", duration.Milliseconds()),
				zap.Int64("p50_ms", p50),
				zap.Int64("p95_ms", p95),
				zap.Bool("error", status >= 500),
				zap.Bool("clientError", status >= 400 && status < 500),
			)
		})
	}
}
