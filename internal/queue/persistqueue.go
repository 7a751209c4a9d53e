package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/esnet-tools/espersistd/internal/pollresult"
)

// keyPrefix matches the reference implementation's memcached key layout
// exactly, so operators migrating a queue store keep the same key shapes.
const keyPrefix = "_mcpq_"

// PersistQueue is a FIFO built on an external counter-based store. It is
// the C2 component: put/get/len/reset over last_added/last_read counters
// and a sparse sequence-number-keyed payload map.
type PersistQueue struct {
	store KVStore
	name  string
	log   *slog.Logger
}

// NewPersistQueue wraps an existing KVStore as a named queue. It writes
// nothing: an absent counter reads as zero, and an existing queue's state
// is never clobbered.
func NewPersistQueue(store KVStore, name string, log *slog.Logger) *PersistQueue {
	if log == nil {
		log = slog.Default()
	}
	return &PersistQueue{store: store, name: name, log: log}
}

func (q *PersistQueue) lastAddedKey() string { return fmt.Sprintf("%s%s_last_added", keyPrefix, q.name) }
func (q *PersistQueue) lastReadKey() string  { return fmt.Sprintf("%s%s_last_read", keyPrefix, q.name) }
func (q *PersistQueue) itemKey(n int64) string {
	return fmt.Sprintf("%s%s_%d", keyPrefix, q.name, n)
}

func (q *PersistQueue) counter(ctx context.Context, key string) (int64, error) {
	b, ok, err := q.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	var n int64
	if _, err := fmt.Sscanf(string(b), "%d", &n); err != nil {
		return 0, nil
	}
	return n, nil
}

// Put serializes value and atomically appends it to the queue.
func (q *PersistQueue) Put(ctx context.Context, value pollresult.Result) error {
	payload, err := pollresult.Marshal(value)
	if err != nil {
		return fmt.Errorf("queue %s: %w", q.name, err)
	}
	n, err := q.store.Incr(ctx, q.lastAddedKey())
	if err != nil {
		return fmt.Errorf("queue %s: incr last_added: %w", q.name, err)
	}
	if err := q.store.Set(ctx, q.itemKey(n), payload); err != nil {
		return fmt.Errorf("queue %s: write payload %d: %w", q.name, n, err)
	}
	return nil
}

// Get returns the next value, or ok=false if the queue is empty. Decode
// failures are logged and treated as an empty slot: the sequence number is
// still consumed.
func (q *PersistQueue) Get(ctx context.Context) (pollresult.Result, bool, error) {
	n, err := q.Len(ctx)
	if err != nil {
		return pollresult.Result{}, false, err
	}
	if n <= 0 {
		return pollresult.Result{}, false, nil
	}
	seq, err := q.store.Incr(ctx, q.lastReadKey())
	if err != nil {
		return pollresult.Result{}, false, fmt.Errorf("queue %s: incr last_read: %w", q.name, err)
	}
	payload, ok, err := q.store.Get(ctx, q.itemKey(seq))
	if err != nil {
		return pollresult.Result{}, false, fmt.Errorf("queue %s: read payload %d: %w", q.name, seq, err)
	}
	if err := q.store.Delete(ctx, q.itemKey(seq)); err != nil {
		q.log.Warn("queue payload delete failed", "queue", q.name, "seq", seq, "error", err)
	}
	if !ok {
		q.log.Warn("queue payload missing, treating as empty slot", "queue", q.name, "seq", seq)
		return pollresult.Result{}, false, nil
	}
	result, err := pollresult.Unmarshal(payload)
	if err != nil {
		q.log.Error("queue payload decode failed, dropping slot", "queue", q.name, "seq", seq, "error", err)
		return pollresult.Result{}, false, nil
	}
	return result, true, nil
}

// Len is advisory: concurrent put/get may transiently observe a negative
// difference, which is clamped to zero.
func (q *PersistQueue) Len(ctx context.Context) (int64, error) {
	added, err := q.counter(ctx, q.lastAddedKey())
	if err != nil {
		return 0, fmt.Errorf("queue %s: read last_added: %w", q.name, err)
	}
	read, err := q.counter(ctx, q.lastReadKey())
	if err != nil {
		return 0, fmt.Errorf("queue %s: read last_read: %w", q.name, err)
	}
	n := added - read
	if n < 0 {
		n = 0
	}
	return n, nil
}

// Reset zeroes both counters.
func (q *PersistQueue) Reset(ctx context.Context) error {
	if err := q.store.Set(ctx, q.lastAddedKey(), []byte("0")); err != nil {
		return err
	}
	return q.store.Set(ctx, q.lastReadKey(), []byte("0"))
}

// Name returns the queue's configured name.
func (q *PersistQueue) Name() string { return q.name }

// LastAdded and LastRead expose the raw counters for the Queue Inspector.
func (q *PersistQueue) LastAdded(ctx context.Context) (int64, error) {
	return q.counter(ctx, q.lastAddedKey())
}

func (q *PersistQueue) LastRead(ctx context.Context) (int64, error) {
	return q.counter(ctx, q.lastReadKey())
}
