package streaming

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/esnet-tools/espersistd/internal/pollresult"
)

func mkResult(ts time.Time) pollresult.Result {
	r := pollresult.New("ifOctets", "router1", "ifHCInOctets", []pollresult.Sample{{Name: "eth0", Value: 42}}, nil)
	r.Timestamp = ts.Unix()
	return r
}

func TestStoreWritesBucketFile(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersister(dir, slog.Default())
	if err != nil {
		t.Fatalf("new persister: %v", err)
	}
	defer p.Close()

	ts := time.Date(2026, 8, 1, 14, 30, 0, 0, time.UTC)
	if err := p.Store(context.Background(), mkResult(ts)); err != nil {
		t.Fatalf("store: %v", err)
	}

	path := filepath.Join(dir, "20260801_14")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read bucket file: %v", err)
	}
	if !strings.HasSuffix(string(data), "\n\n") {
		t.Fatalf("expected record followed by a blank line, got %q", string(data))
	}
}

func TestStoreRotatesOnHourChange(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPersister(dir, slog.Default())
	if err != nil {
		t.Fatalf("new persister: %v", err)
	}
	defer p.Close()

	t1 := time.Date(2026, 8, 1, 14, 59, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 1, 15, 1, 0, 0, time.UTC)

	if err := p.Store(context.Background(), mkResult(t1)); err != nil {
		t.Fatalf("store 1: %v", err)
	}
	if err := p.Store(context.Background(), mkResult(t2)); err != nil {
		t.Fatalf("store 2: %v", err)
	}

	for _, bucket := range []string{"20260801_14", "20260801_15"} {
		if _, err := os.Stat(filepath.Join(dir, bucket)); err != nil {
			t.Fatalf("expected bucket file %s: %v", bucket, err)
		}
	}
}

func TestNewPersisterRequiresDir(t *testing.T) {
	if _, err := NewPersister("", slog.Default()); err == nil {
		t.Fatal("expected error for empty dir")
	}
}
