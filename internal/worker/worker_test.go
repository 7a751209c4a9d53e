package worker

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/esnet-tools/espersistd/internal/pollresult"
	"github.com/esnet-tools/espersistd/internal/queue"
)

type fakePersister struct {
	mu    sync.Mutex
	seen  []pollresult.Result
	fail  bool
}

func (p *fakePersister) Store(ctx context.Context, r pollresult.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return context.DeadlineExceeded
	}
	p.seen = append(p.seen, r)
	return nil
}

func TestWorkerDrainsQueueUntilCanceled(t *testing.T) {
	store := queue.NewMemStore()
	q := queue.NewPersistQueue(store, "tsdb", slog.Default())
	ctx := context.Background()

	want := 3
	for i := 0; i < want; i++ {
		r := pollresult.New("ifOctets", "router1", "ifHCInOctets", nil, nil)
		if err := q.Put(ctx, r); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	p := &fakePersister{}
	w := &Worker{
		QueueName:      "tsdb",
		PersisterClass: "TSDBPersister",
		Queue:          q,
		Persister:      p,
		Log:            slog.Default(),
	}

	runCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()

	if err := w.Run(runCtx); err != nil {
		t.Fatalf("run: %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.seen) != want {
		t.Fatalf("persisted %d records, want %d", len(p.seen), want)
	}
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	store := queue.NewMemStore()
	q := queue.NewPersistQueue(store, "empty", slog.Default())
	p := &fakePersister{}
	w := &Worker{QueueName: "empty", PersisterClass: "x", Queue: q, Persister: p, Log: slog.Default()}

	runCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(runCtx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
