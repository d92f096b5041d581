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

const latencySamplesPerRoute = 200

// statusRecorder captures the status and size of a response. It forwards
// Hijack so websocket upgrades pass through.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(data)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// latencyRing keeps the most recent samples of one route.
type latencyRing struct {
	samples []int64
	next    int
}

func (w *latencyRing) add(value int64, max int) {
	if len(w.samples) < max {
		w.samples = append(w.samples, value)
		return
	}
	w.samples[w.next] = value
	w.next = (w.next + 1) % max
}

// LatencyTracker reports rolling p50/p95 latencies per route.
type LatencyTracker struct {
	mu     sync.Mutex
	window int
	routes map[string]*latencyRing
}

func NewLatencyTracker(window int) *LatencyTracker {
	if window <= 0 {
		window = latencySamplesPerRoute
	}
	return &LatencyTracker{window: window, routes: make(map[string]*latencyRing)}
}

// Record adds a sample and returns the route's current p50 and p95.
func (t *LatencyTracker) Record(route string, ms int64) (p50 int64, p95 int64) {
	t.mu.Lock()
	ring, ok := t.routes[route]
	if !ok {
		ring = &latencyRing{}
		t.routes[route] = ring
	}
	ring.add(ms, t.window)
	values := append([]int64(nil), ring.samples...)
	t.mu.Unlock()

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return percentile(values, 0.5), percentile(values, 0.95)
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

// Telemetry logs one structured line per request with rolling latency
// percentiles for its route pattern.
func Telemetry(logger *zap.Logger, tracker *LatencyTracker) func(http.Handler) http.Handler {
	if tracker == nil {
		tracker = NewLatencyTracker(latencySamplesPerRoute)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(recorder, r)

			if logger == nil {
				return
			}
			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}
			routePattern := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				routePattern = rc.RoutePattern()
			}
			route := r.Method + " " + routePattern
			if routePattern == "" {
				route = r.Method + " " + r.URL.Path
			}
			duration := time.Since(start)
			p50, p95 := tracker.Record(route, duration.Milliseconds())

			logger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("routePattern", routePattern),
				zap.String("requestId", RequestIDFromContext(r.Context())),
				zap.Int("status", status),
				zap.Int("bytes", recorder.bytes),
				zap.Int64("duration_ms", duration.Milliseconds()),
				zap.Int64("p50_ms", p50),
				zap.Int64("p95_ms", p95),
				zap.Bool("error", status >= 500),
			)
		})
	}
}
