package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/esnet-tools/espersistd/internal/app"
	"github.com/esnet-tools/espersistd/internal/config"
	"github.com/esnet-tools/espersistd/internal/inspector"
	"github.com/esnet-tools/espersistd/internal/intake"
	"github.com/esnet-tools/espersistd/internal/metrics"
	"github.com/esnet-tools/espersistd/internal/persist"
	persisthistory "github.com/esnet-tools/espersistd/internal/persist/history"
	_ "github.com/esnet-tools/espersistd/internal/persist/streaming"
	_ "github.com/esnet-tools/espersistd/internal/persist/tsdb"
	"github.com/esnet-tools/espersistd/internal/queue"
	"github.com/esnet-tools/espersistd/internal/router"
	"github.com/esnet-tools/espersistd/internal/supervisor"
	"github.com/esnet-tools/espersistd/internal/worker"
)

const version = "1.0.0"

var (
	role       string
	queueName  string
	number     int
	configFile string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:     "espersistd",
	Short:   "Persistence tier for SNMP telemetry: queues, TSDB, history, and streaming persisters",
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		log := app.NewLogger(cfg.Logging, debug)

		switch role {
		case "worker":
			return runWorker(cmd.Context(), cfg, log)
		case "manager":
			return runManager(cmd.Context(), cfg, log)
		case "stats":
			return runStats(cmd.Context(), cfg, log)
		case "intake":
			return runIntake(cmd.Context(), cfg, log)
		default:
			return fmt.Errorf("espersistd: unknown --role %q (want manager, worker, stats, or intake)", role)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&role, "role", "manager", "manager, worker, stats, or intake")
	rootCmd.Flags().StringVar(&queueName, "queue", "", "queue name (required for --role=worker)")
	rootCmd.Flags().IntVar(&number, "number", 0, "worker ordinal within a multi-worker queue")
	rootCmd.Flags().StringVar(&configFile, "config-file", "", "path to YAML configuration")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runWorker drains one named queue's worker ordinal through its
// configured persister class, per spec.md §4.7.
func runWorker(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if queueName == "" {
		return fmt.Errorf("worker: --queue is required")
	}
	qc, ok := cfg.PersistQueues[queueName]
	if !ok {
		return fmt.Errorf("worker: unknown queue %q", queueName)
	}

	store, err := app.OpenQueueStore(cfg)
	if err != nil {
		return err
	}

	shardName := queueName
	if qc.Workers > 1 {
		shardName = fmt.Sprintf("%s_%d", queueName, number)
	}
	pq := queue.NewPersistQueue(store, shardName, log)

	deps := app.PersistDeps(cfg, queueName, number, log)
	persister, err := persist.Resolve(qc.PersisterClass, deps)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	var exporter *metrics.Exporter
	if cfg.MetricsAddr != "" {
		exporter, err = metrics.NewExporter(cfg.MetricsAddr, "/metrics", log)
		if err != nil {
			return fmt.Errorf("worker: metrics: %w", err)
		}
		defer exporter.Close()
	}

	healthSrv, err := app.OpenHealth(cfg, log)
	if err != nil {
		return err
	}
	if healthSrv != nil {
		defer healthSrv.Shutdown()
	}

	w := &worker.Worker{
		QueueName:      queueName,
		PersisterClass: qc.PersisterClass,
		Queue:          pq,
		Persister:      persister,
		Metrics:        exporter,
		Health:         healthSrv,
		Log:            log,
	}
	return w.Run(ctx)
}

// runManager starts the Supervisor, spawning one child per (queue_name,
// ordinal) from persist_queues, per spec.md §4.8.
func runManager(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, err := persisthistory.NewPGStore(ctx, cfg.DBURI)
	if err != nil {
		return fmt.Errorf("manager: %w", err)
	}
	defer store.Close()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("manager: resolve executable: %w", err)
	}

	sup := supervisor.New(exe, configFile, debug, store.Ping, log)

	var specs []supervisor.ChildSpec
	for qname, qc := range cfg.PersistQueues {
		for i := 0; i < qc.Workers; i++ {
			specs = append(specs, supervisor.ChildSpec{QueueName: qname, Class: qc.PersisterClass, Ordinal: i})
		}
	}

	return sup.Run(ctx, specs)
}

// runStats starts the Queue Inspector, per spec.md §4.9.
func runStats(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, err := app.OpenQueueStore(cfg)
	if err != nil {
		return err
	}

	queues := map[string]*queue.PersistQueue{}
	for qname, qc := range cfg.PersistQueues {
		if qc.Workers > 1 {
			for i := 0; i < qc.Workers; i++ {
				name := fmt.Sprintf("%s_%d", qname, i)
				queues[name] = queue.NewPersistQueue(store, name, log)
			}
			continue
		}
		queues[qname] = queue.NewPersistQueue(store, qname, log)
	}

	var sink inspector.Sink
	if cfg.StatsESURI != "" {
		esSink, err := inspector.NewESSink(cfg.StatsESURI, "espersistd-queue-stats", log)
		if err != nil {
			log.Warn("stats: elasticsearch sink unavailable", "error", err)
		} else {
			sink = esSink
		}
	}

	ins := inspector.New(queues, sink, log)
	return ins.Run(ctx)
}

// runIntake starts the HTTP boundary an upstream poller pushes
// PollResults through, routing each via the Persist Router (C4) onto
// its configured queues, per spec.md §4.3.
func runIntake(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	store, err := app.OpenQueueStore(cfg)
	if err != nil {
		return err
	}

	sinks := map[string]router.Sink{}
	for qname, qc := range cfg.PersistQueues {
		sinks[qname] = app.OpenQueue(store, qname, qc.Workers, log)
	}

	r := router.New(cfg.PersistMap, sinks, log)
	srv := intake.New(cfg.IntakeAddr, cfg.IntakePath, r, log)
	return srv.Run(ctx)
}

