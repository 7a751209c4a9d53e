package inspector

import (
	"context"
	"log/slog"
	"testing"

	"github.com/esnet-tools/espersistd/internal/pollresult"
	"github.com/esnet-tools/espersistd/internal/queue"
)

type fakeSink struct {
	recorded [][]QueueStat
}

func (s *fakeSink) Record(ctx context.Context, snapshot []QueueStat) error {
	s.recorded = append(s.recorded, snapshot)
	return nil
}

func TestTickReportsPendingAndDeltas(t *testing.T) {
	store := queue.NewMemStore()
	q := queue.NewPersistQueue(store, "tsdb", slog.Default())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := q.Put(ctx, pollresult.New("ifOctets", "router1", "ifHCInOctets", nil, nil)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if _, _, err := q.Get(ctx); err != nil {
		t.Fatalf("get: %v", err)
	}

	sink := &fakeSink{}
	ins := New(map[string]*queue.PersistQueue{"tsdb": q}, sink, slog.Default())

	if err := ins.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if len(sink.recorded) != 1 {
		t.Fatalf("expected one recorded snapshot, got %d", len(sink.recorded))
	}
	stats := sink.recorded[0]
	if len(stats) != 1 {
		t.Fatalf("expected one queue stat, got %d", len(stats))
	}
	s := stats[0]
	if s.Pending != 2 || s.LastAdded != 3 {
		t.Fatalf("got pending=%d last_added=%d, want 2/3", s.Pending, s.LastAdded)
	}
}
