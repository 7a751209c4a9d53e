package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/esnet-tools/espersistd/internal/pollresult"
)

// MultiWorkerQueue wraps N sibling PersistQueues named "{prefix}_0" through
// "{prefix}_{N-1}" (C3). It shards by the composite key
// oidset_name + ":" + device_name: a key keeps its assignment for the
// lifetime of the process once it is first seen.
type MultiWorkerQueue struct {
	mu         sync.Mutex
	workers    []*PersistQueue
	assignment map[string]int
	cursor     int
}

// NewMultiWorkerQueue builds the sharding wrapper over queues already
// constructed by the caller (one per worker ordinal, 0-indexed by
// position in the slice).
func NewMultiWorkerQueue(workers []*PersistQueue) *MultiWorkerQueue {
	return &MultiWorkerQueue{
		workers:    workers,
		assignment: make(map[string]int),
	}
}

func shardKey(oidsetName, deviceName string) string {
	return oidsetName + ":" + deviceName
}

// GetWorker returns the 0-based worker index assigned to this key,
// assigning one via round-robin on first sight.
func (m *MultiWorkerQueue) GetWorker(oidsetName, deviceName string) int {
	key := shardKey(oidsetName, deviceName)

	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.assignment[key]; ok {
		return idx
	}
	idx := m.cursor
	m.assignment[key] = idx
	m.cursor = (m.cursor + 1) % len(m.workers)
	return idx
}

// Put routes result to its sticky worker queue.
func (m *MultiWorkerQueue) Put(ctx context.Context, result pollresult.Result) error {
	idx := m.GetWorker(result.OIDSetName, result.DeviceName)
	if idx < 0 || idx >= len(m.workers) {
		return fmt.Errorf("multi-worker queue: worker index %d out of range [0,%d)", idx, len(m.workers))
	}
	return m.workers[idx].Put(ctx, result)
}

// NumWorkers returns the configured worker count.
func (m *MultiWorkerQueue) NumWorkers() int { return len(m.workers) }

// Worker returns the sibling PersistQueue for a 0-based ordinal.
func (m *MultiWorkerQueue) Worker(idx int) *PersistQueue { return m.workers[idx] }
