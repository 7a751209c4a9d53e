// Package worker implements the Worker Loop (C8): drains one persist
// queue, invokes its configured persister, and emits periodic throughput
// stats. Signal handling is grounded on
// internet-connection-monitor/cmd/monitor/main.go's
// context.WithCancel-plus-signal.Notify shutdown shape.
package worker

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/esnet-tools/espersistd/internal/health"
	"github.com/esnet-tools/espersistd/internal/metrics"
	"github.com/esnet-tools/espersistd/internal/persist"
	"github.com/esnet-tools/espersistd/internal/queue"
)

const (
	idlePollInterval = time.Second
	statsInterval    = 60 * time.Second
)

// Worker drains one PersistQueue through one Persister.
type Worker struct {
	QueueName      string
	PersisterClass string
	Queue          *queue.PersistQueue
	Persister      persist.Persister
	Metrics        *metrics.Exporter
	Health         *health.Server
	Log            *slog.Logger
}

// Run blocks, draining the queue until ctx is canceled or the process
// receives SIGINT/SIGTERM.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			w.Log.Info("worker: received shutdown signal", "queue", w.QueueName)
			cancel()
		case <-ctx.Done():
		}
	}()

	var dataCount int
	lastStats := time.Now()

	for {
		select {
		case <-ctx.Done():
			w.Log.Info("worker: stopped", "queue", w.QueueName)
			return nil
		default:
		}

		item, ok, err := w.Queue.Get(ctx)
		if err != nil {
			w.Log.Error("worker: queue get failed", "queue", w.QueueName, "error", err)
			sleepOrDone(ctx, idlePollInterval)
			continue
		}
		if !ok {
			sleepOrDone(ctx, idlePollInterval)
		} else {
			if err := w.Persister.Store(ctx, item); err != nil {
				w.Log.Error("worker: persist failed", "queue", w.QueueName, "device", item.DeviceName, "oidset", item.OIDSetName, "error", err)
				if w.Metrics != nil {
					w.Metrics.RecordsDropped.WithLabelValues(w.QueueName, w.PersisterClass).Inc()
				}
				w.Health.RecordPersist(w.QueueName, false)
			} else {
				dataCount += len(item.Data)
				if w.Metrics != nil {
					w.Metrics.RecordsWritten.WithLabelValues(w.QueueName, w.PersisterClass).Inc()
				}
				w.Health.RecordPersist(w.QueueName, true)
			}
		}

		if elapsed := time.Since(lastStats); elapsed > statsInterval {
			rate := float64(dataCount) / elapsed.Seconds()
			w.Log.Info("worker: throughput", "queue", w.QueueName, "records", dataCount, "per_second", rate)
			if w.Metrics != nil {
				w.Metrics.RecordsPerSec.WithLabelValues(w.QueueName).Set(rate)
			}
			dataCount = 0
			lastStats = time.Now()
		}
	}
}

// sleepOrDone sleeps d unless ctx is canceled first.
func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
