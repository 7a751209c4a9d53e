package history

import (
	"context"
	"testing"
	"time"
)

func ifDescrSnapshot(names ...string) map[string]map[string]any {
	table := map[string]any{}
	for i, n := range names {
		table[string(rune('1'+i))] = n
	}
	return map[string]map[string]any{"ifDescr": table}
}

// TestReconcileScenarioS2AddThenDelete exercises scenario S2: a device
// gains an interface, then the interface disappears from a later poll.
func TestReconcileScenarioS2AddThenDelete(t *testing.T) {
	store := newFakeStore(map[string]int64{"router1": 1})
	r := NewReconciler(store, "ifref", NewIfRefBuilder())
	ctx := context.Background()
	t0 := time.Unix(1000, 0).UTC()
	t1 := time.Unix(2000, 0).UTC()

	adds, changes, deletes, err := r.Reconcile(ctx, "router1", ifDescrSnapshot("eth0", "eth1"), t0)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if adds != 2 || changes != 0 || deletes != 0 {
		t.Fatalf("got adds=%d changes=%d deletes=%d, want 2/0/0", adds, changes, deletes)
	}

	adds, changes, deletes, err = r.Reconcile(ctx, "router1", ifDescrSnapshot("eth0"), t1)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if adds != 0 || changes != 0 || deletes != 1 {
		t.Fatalf("got adds=%d changes=%d deletes=%d, want 0/0/1", adds, changes, deletes)
	}

	live, _ := store.LiveRows(ctx, "ifref", 1)
	if len(live) != 1 || live[0].Attrs["ifDescr"] != "eth0" {
		t.Fatalf("expected only eth0 live, got %+v", live)
	}
}

// TestReconcileIdempotence is property 5: reconciling the same snapshot
// twice in a row produces no further changes.
func TestReconcileIdempotence(t *testing.T) {
	store := newFakeStore(map[string]int64{"router1": 1})
	r := NewReconciler(store, "ifref", NewIfRefBuilder())
	ctx := context.Background()
	snap := ifDescrSnapshot("eth0", "eth1")

	if _, _, _, err := r.Reconcile(ctx, "router1", snap, time.Unix(1000, 0)); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	adds, changes, deletes, err := r.Reconcile(ctx, "router1", snap, time.Unix(2000, 0))
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if adds != 0 || changes != 0 || deletes != 0 {
		t.Fatalf("expected no-op reconcile, got adds=%d changes=%d deletes=%d", adds, changes, deletes)
	}
}

// TestReconcileMinimality is property 6: an unrelated attribute change on
// one entity does not touch any other entity's live row.
func TestReconcileMinimality(t *testing.T) {
	store := newFakeStore(map[string]int64{"router1": 1})
	r := NewReconciler(store, "ifref", NewIfRefBuilder())
	ctx := context.Background()

	if _, _, _, err := r.Reconcile(ctx, "router1", ifDescrSnapshot("eth0", "eth1"), time.Unix(1000, 0)); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}

	live, _ := store.LiveRows(ctx, "ifref", 1)
	var eth0ID, eth1ID int64
	for _, row := range live {
		if row.Attrs["ifDescr"] == "eth0" {
			eth0ID = row.ID
		}
		if row.Attrs["ifDescr"] == "eth1" {
			eth1ID = row.ID
		}
	}

	changed := map[string]map[string]any{
		"ifDescr": {"1": "eth0", "2": "eth1"},
		"ifSpeed": {"2": int64(1000)},
	}
	adds, changes, deletes, err := r.Reconcile(ctx, "router1", changed, time.Unix(2000, 0))
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if adds != 0 || changes != 1 || deletes != 0 {
		t.Fatalf("got adds=%d changes=%d deletes=%d, want 0/1/0", adds, changes, deletes)
	}

	live, _ = store.LiveRows(ctx, "ifref", 1)
	for _, row := range live {
		if row.Attrs["ifDescr"] == "eth0" && row.ID != eth0ID {
			t.Fatalf("eth0's live row was replaced when only eth1 changed: %+v", row)
		}
	}
	_ = eth1ID
}

// TestReconcileLiveRowUniqueness is property 7: after any number of
// reconciles, each entity key has at most one live row.
func TestReconcileLiveRowUniqueness(t *testing.T) {
	store := newFakeStore(map[string]int64{"router1": 1})
	r := NewReconciler(store, "ifref", NewIfRefBuilder())
	ctx := context.Background()

	snaps := []map[string]map[string]any{
		ifDescrSnapshot("eth0"),
		{"ifDescr": {"1": "eth0"}, "ifSpeed": {"1": int64(100)}},
		{"ifDescr": {"1": "eth0"}, "ifSpeed": {"1": int64(1000)}},
		ifDescrSnapshot("eth0", "eth1"),
	}
	for i, snap := range snaps {
		if _, _, _, err := r.Reconcile(ctx, "router1", snap, time.Unix(int64(1000*(i+1)), 0)); err != nil {
			t.Fatalf("reconcile %d: %v", i, err)
		}
	}

	seen := map[string]int{}
	live, _ := store.LiveRows(ctx, "ifref", 1)
	for _, row := range live {
		seen[row.Attrs["ifDescr"].(string)]++
	}
	for key, count := range seen {
		if count != 1 {
			t.Fatalf("entity %s has %d live rows, want 1", key, count)
		}
	}
}

func TestReconcileUnknownDevice(t *testing.T) {
	store := newFakeStore(map[string]int64{})
	r := NewReconciler(store, "ifref", NewIfRefBuilder())
	_, _, _, err := r.Reconcile(context.Background(), "ghost", ifDescrSnapshot("eth0"), time.Unix(1000, 0))
	if err == nil {
		t.Fatal("expected error for unknown device")
	}
}
