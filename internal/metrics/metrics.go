// Package metrics exposes Prometheus metrics for the tab lifecycle.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgnsrekt/tabshell/internal/bridge"
	"github.com/dgnsrekt/tabshell/internal/bus"
	"github.com/dgnsrekt/tabshell/internal/types"
)

// Sources are read at scrape time.
type Sources struct {
	PoolIdle     func() int
	Containers   func() int
	OpenTabs     func() int
	FrameReady   func() bool
	StreamClient func() int
}

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	BusEvents      *prometheus.CounterVec
	BridgeRequests *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	startTime      time.Time
}

func New(src Sources) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		BusEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabshell_bus_events_total",
				Help: "Events emitted on the bus",
			},
			[]string{"event"},
		),
		BridgeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabshell_bridge_requests_total",
				Help: "Bridge requests handled, by type and outcome",
			},
			[]string{"type", "status"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabshell_http_requests_total",
				Help: "HTTP requests served",
			},
			[]string{"method", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tabshell_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
	}

	gauge := func(name, help string, fn func() float64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn)
	}
	if src.PoolIdle != nil {
		gauge("tabshell_pool_idle", "Pre-warmed containers waiting in the pool", func() float64 { return float64(src.PoolIdle()) })
	}
	if src.Containers != nil {
		gauge("tabshell_registry_containers", "Containers attached to open tabs", func() float64 { return float64(src.Containers()) })
	}
	if src.OpenTabs != nil {
		gauge("tabshell_tabs_open", "Open tabs", func() float64 { return float64(src.OpenTabs()) })
	}
	if src.FrameReady != nil {
		gauge("tabshell_frame_ready", "1 once the UI frame signalled readiness", func() float64 {
			if src.FrameReady() {
				return 1
			}
			return 0
		})
	}
	if src.StreamClient != nil {
		gauge("tabshell_event_stream_clients", "Connected event stream clients", func() float64 { return float64(src.StreamClient()) })
	}
	gauge("tabshell_uptime_seconds", "Process uptime in seconds", func() float64 { return time.Since(m.startTime).Seconds() })
	return m
}

// HandleBusEvent is a bus.Handler counting emissions.
func (m *Metrics) HandleBusEvent(evt bus.Event) {
	m.BusEvents.WithLabelValues(evt.EventName).Inc()
}

// ObserveBridge records one bridge request outcome. Unknown request types
// share a single label value.
func (m *Metrics) ObserveBridge(requestType string, err error) {
	switch requestType {
	case bridge.TypeCloseTabOnTabPage, bridge.TypeFrameDidReadyOnTabPage,
		bridge.TypeSwitchTabOnWindow, bridge.TypeCreateTabOnWindow:
	default:
		requestType = "unknown"
	}
	m.BridgeRequests.WithLabelValues(requestType, status(err)).Inc()
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(method string, code int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, http.StatusText(code)).Inc()
	m.HTTPDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err == nil {
		return "ok"
	}
	var coded *types.CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return "error"
}
