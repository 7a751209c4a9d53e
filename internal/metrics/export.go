// Package metrics exposes worker and queue throughput over HTTP for
// Prometheus scraping, grounded on
// internet-connection-monitor/internal/outputs/prometheus.go's
// CounterVec/GaugeVec-plus-http.Server pattern, generalized from
// per-site web-probe timings to per-queue persistence throughput.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exposes the persistence tier's throughput counters.
// QueueDepth is registered and served, but no code in this module sets it.
type Exporter struct {
	RecordsWritten  *prometheus.CounterVec
	RecordsDropped  *prometheus.CounterVec
	RecordsPerSec   *prometheus.GaugeVec
	QueueDepth      *prometheus.GaugeVec

	registry *prometheus.Registry
	server   *http.Server
	log      *slog.Logger
}

// NewExporter builds an Exporter with its own private registry (so
// multiple worker processes on the same host don't collide on the
// default global registry) and starts serving it at addr/path.
func NewExporter(addr, path string, log *slog.Logger) (*Exporter, error) {
	if log == nil {
		log = slog.Default()
	}
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		log:      log,
		RecordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "espersistd_records_written_total",
			Help: "Total poll results successfully persisted, by queue and persister class.",
		}, []string{"queue", "persister_class"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "espersistd_records_dropped_total",
			Help: "Total poll results dropped as data errors, by queue and persister class.",
		}, []string{"queue", "persister_class"}),
		RecordsPerSec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "espersistd_records_per_second",
			Help: "Records persisted per second over the last stats interval, by queue.",
		}, []string{"queue"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "espersistd_queue_depth",
			Help: "Pending items in a persist queue.",
		}, []string{"queue"}),
	}

	e.registry.MustRegister(e.RecordsWritten, e.RecordsDropped, e.RecordsPerSec, e.QueueDepth)

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	e.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics: starting exporter", "addr", addr, "path", path)
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics: exporter stopped", "error", err)
		}
	}()

	return e, nil
}

// Close shuts the HTTP server down.
func (e *Exporter) Close() error {
	if e == nil || e.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	return nil
}
