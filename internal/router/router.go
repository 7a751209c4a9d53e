// Package router implements the Persist Router (C4): it classifies each
// incoming poll result by OID-set name and forwards it to every configured
// target queue.
package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/esnet-tools/espersistd/internal/pollresult"
)

// Sink is anything a poll result can be enqueued onto: a single-worker
// queue.PersistQueue or a sharding queue.MultiWorkerQueue both satisfy
// this.
type Sink interface {
	Put(ctx context.Context, result pollresult.Result) error
}

// Router maps a lower-cased OID-set name to the set of target queues
// (persist_map) and holds the constructed Sink for each queue name
// (persist_queues, resolved by the caller at startup).
type Router struct {
	persistMap map[string][]string
	sinks      map[string]Sink
	log        *slog.Logger
}

// New builds a Router from the persist_map table and a table of already
// constructed sinks keyed by queue name.
func New(persistMap map[string][]string, sinks map[string]Sink, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	lowered := make(map[string][]string, len(persistMap))
	for k, v := range persistMap {
		lowered[strings.ToLower(k)] = v
	}
	return &Router{persistMap: lowered, sinks: sinks, log: log}
}

// Put routes result to every queue mapped from its OID-set name. An
// unmapped OID-set is logged at error level and dropped; this is the only
// supported dropping rule outside explicit failure. The router never
// blocks on I/O longer than a single enqueue per target queue.
func (r *Router) Put(ctx context.Context, result pollresult.Result) error {
	key := strings.ToLower(result.OIDSetName)
	targets, ok := r.persistMap[key]
	if !ok {
		r.log.Error("no persist_map entry for oidset, dropping result",
			"oidset_name", result.OIDSetName, "device_name", result.DeviceName)
		return nil
	}

	for _, qname := range targets {
		sink, ok := r.sinks[qname]
		if !ok {
			r.log.Error("persist_map references unknown queue, dropping",
				"oidset_name", result.OIDSetName, "queue", qname)
			continue
		}
		if err := sink.Put(ctx, result); err != nil {
			r.log.Error("enqueue failed", "queue", qname, "oidset_name", result.OIDSetName, "error", err)
		}
	}
	return nil
}
