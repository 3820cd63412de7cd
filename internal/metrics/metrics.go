// Package metrics exposes gateway counters in Prometheus text format
// without pulling in the full client_golang dependency.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var Default = NewRegistry()

// Registry holds counters, gauges, and histograms.
type Registry struct {
	mu         sync.Mutex
	counters   []*Counter
	gauges     []*Gauge
	histograms []*Histogram
	startTime  time.Time
}

func NewRegistry() *Registry {
	return &Registry{startTime: time.Now()}
}

// Counter is a monotonically increasing value.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks a value distribution over fixed buckets.
type Histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	count   int64
	sum     float64
	uppers  []float64
	buckets []int64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.uppers {
		if v <= le {
			h.buckets[i]++
		}
	}
}

func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Counter{name: name, help: help}
	r.counters = append(r.counters, c)
	return c
}

func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := &Gauge{name: name, help: help}
	r.gauges = append(r.gauges, g)
	return g
}

func (r *Registry) Histogram(name, help string, uppers []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Float64s(uppers)
	h := &Histogram{name: name, help: help, uppers: uppers, buckets: make([]int64, len(uppers))}
	r.histograms = append(r.histograms, h)
	return h
}

// Handler renders the registry in Prometheus exposition format.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder
		fmt.Fprintf(&sb, "# HELP backstage_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(&sb, "# TYPE backstage_uptime_seconds gauge\n")
		fmt.Fprintf(&sb, "backstage_uptime_seconds %d\n", int64(time.Since(r.startTime).Seconds()))

		r.mu.Lock()
		defer r.mu.Unlock()
		for _, c := range r.counters {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", c.name, c.help, c.name, c.name, c.Value())
		}
		for _, g := range r.gauges {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", g.name, g.help, g.name, g.name, g.Value())
		}
		for _, h := range r.histograms {
			h.mu.Lock()
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
			for i, le := range h.uppers {
				fmt.Fprintf(&sb, "%s_bucket{le=\"%g\"} %d\n", h.name, le, h.buckets[i])
			}
			fmt.Fprintf(&sb, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
			fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
			fmt.Fprintf(&sb, "%s_sum %f\n", h.name, h.sum)
			h.mu.Unlock()
		}

		fmt.Fprint(w, sb.String())
	}
}

// Metrics used across the gateway.
var (
	SendsTotal        = Default.Counter("backstage_sends_total", "Outbound messages accepted by the backend")
	SendFailuresTotal = Default.Counter("backstage_send_failures_total", "Outbound sends rejected or failed")
	Reconnects        = Default.Counter("backstage_reconnects_total", "Session reconnect attempts after transient disconnects")
	SessionReady      = Default.Gauge("backstage_session_ready", "1 while the WhatsApp session is connected")
	LiveUploads       = Default.Gauge("backstage_live_uploads", "Upload temp files not yet released")

	SendLatency = Default.Histogram("backstage_send_latency_seconds", "Outbound send latency in seconds",
		[]float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30})
)
