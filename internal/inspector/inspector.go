// Package inspector implements the Queue Inspector (C10): a read-only
// poll loop over every configured queue's counters, printed as a table,
// with an optional Elasticsearch sink for historical snapshots.
package inspector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/esnet-tools/espersistd/internal/queue"
)

const pollInterval = 15 * time.Second

// Sink optionally records each tick's snapshot somewhere durable (e.g.
// Elasticsearch); Record is best-effort and never blocks the poll loop.
type Sink interface {
	Record(ctx context.Context, snapshot []QueueStat) error
}

// QueueStat is one queue's counters at a point in time.
type QueueStat struct {
	Name      string
	Pending   int64
	New       int64
	Done      int64
	LastAdded int64
}

// Inspector polls a fixed set of named queues and prints their counters.
type Inspector struct {
	queues map[string]*queue.PersistQueue
	sink   Sink
	log    *slog.Logger

	prevAdded map[string]int64
	prevRead  map[string]int64
	warned    map[string]bool
}

// New builds an Inspector over the given named queues. sink may be nil.
func New(queues map[string]*queue.PersistQueue, sink Sink, log *slog.Logger) *Inspector {
	if log == nil {
		log = slog.Default()
	}
	return &Inspector{
		queues:    queues,
		sink:      sink,
		log:       log,
		prevAdded: map[string]int64{},
		prevRead:  map[string]int64{},
		warned:    map[string]bool{},
	}
}

// Run polls every pollInterval until ctx is canceled, printing a table to
// stdout on each tick.
func (ins *Inspector) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	if err := ins.tick(ctx); err != nil {
		ins.log.Error("inspector: tick failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := ins.tick(ctx); err != nil {
				ins.log.Error("inspector: tick failed", "error", err)
			}
		}
	}
}

func (ins *Inspector) tick(ctx context.Context) error {
	names := make([]string, 0, len(ins.queues))
	for name := range ins.queues {
		names = append(names, name)
	}
	sort.Strings(names)

	snapshot := make([]QueueStat, 0, len(names))
	for _, name := range names {
		q := ins.queues[name]
		added, err := q.LastAdded(ctx)
		if err != nil {
			if !ins.warned[name] {
				ins.log.Warn("inspector: queue unreachable", "queue", name, "error", err)
				ins.warned[name] = true
			}
			continue
		}
		read, err := q.LastRead(ctx)
		if err != nil {
			if !ins.warned[name] {
				ins.log.Warn("inspector: queue unreachable", "queue", name, "error", err)
				ins.warned[name] = true
			}
			continue
		}
		ins.warned[name] = false

		pending := added - read
		if pending < 0 {
			pending = 0
		}
		stat := QueueStat{
			Name:      name,
			Pending:   pending,
			New:       added - ins.prevAdded[name],
			Done:      read - ins.prevRead[name],
			LastAdded: added,
		}
		ins.prevAdded[name] = added
		ins.prevRead[name] = read
		snapshot = append(snapshot, stat)
	}

	printTable(snapshot)

	if ins.sink != nil {
		if err := ins.sink.Record(ctx, snapshot); err != nil {
			ins.log.Warn("inspector: sink record failed", "error", err)
		}
	}
	return nil
}

func printTable(stats []QueueStat) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "QUEUE\tPENDING\tNEW\tDONE\tLAST_ADDED")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", s.Name, s.Pending, s.New, s.Done, s.LastAdded)
	}
	w.Flush()
}
