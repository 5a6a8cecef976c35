package analytics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromSink counts events by category and action.
type PromSink struct {
	events *prometheus.CounterVec
}

func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lpdesk_events_total",
		Help: "Liquidity events emitted after successful submissions.",
	}, []string{"category", "action"})
	if err := reg.Register(events); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		events = already.ExistingCollector.(*prometheus.CounterVec)
	}
	return &PromSink{events: events}, nil
}

func (s *PromSink) Track(event Event) {
	s.events.WithLabelValues(event.Category, event.Action).Inc()
}

// MetricsServer exposes a registry over HTTP.
type MetricsServer struct {
	srv *http.Server
}

// NewMetricsServer returns nil when addr is empty.
func NewMetricsServer(addr string, gatherer prometheus.Gatherer) *MetricsServer {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves metrics until Stop; returns nil when disabled.
func (s *MetricsServer) Start() error {
	if s == nil {
		return nil
	}
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server; no-op when disabled.
func (s *MetricsServer) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
