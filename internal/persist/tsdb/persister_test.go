package tsdb

import (
	"context"
	"testing"

	"github.com/esnet-tools/espersistd/internal/config"
	"github.com/esnet-tools/espersistd/internal/oidtype"
	"github.com/esnet-tools/espersistd/internal/pollresult"
)

func TestStoreInsertsSampleS1(t *testing.T) {
	client := NewClient("/tsdb", nil)
	oidSets := map[string]config.OIDSetConfig{
		"fastpoll": {Frequency: 30},
	}
	p := NewPersister(client, oidSets, oidtype.NewTable(nil), nil)

	result := pollresult.New("FastPoll", "router1", "ifInOctets", []pollresult.Sample{
		{Name: "ifInOctets.1", Value: float64(100)},
	}, nil)
	result.Timestamp = 1000

	if err := p.Store(context.Background(), result); err != nil {
		t.Fatalf("Store: %v", err)
	}

	v, err := client.GetVar("router1/FastPoll/ifInOctets.1")
	if err != nil {
		t.Fatalf("GetVar: %v", err)
	}
	samples := v.Samples()
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	if samples[0].Value != 100 || samples[0].Timestamp != 1000 {
		t.Errorf("sample = %+v, want {Timestamp:1000 Value:100}", samples[0])
	}
}

func TestStoreSparkySetScalesValueByHundred(t *testing.T) {
	client := NewClient("/tsdb", nil)
	oidSets := map[string]config.OIDSetConfig{
		"sparkypoll": {Frequency: 30, SetName: "SparkySet"},
	}
	p := NewPersister(client, oidSets, oidtype.NewTable(nil), nil)

	result := pollresult.New("SparkyPoll", "router1", "temp", []pollresult.Sample{
		{Name: "temp.1", Value: 1.5},
	}, nil)
	result.Timestamp = 2000

	if err := p.Store(context.Background(), result); err != nil {
		t.Fatalf("Store: %v", err)
	}

	v, err := client.GetVar("router1/SparkySet/temp.1")
	if err != nil {
		t.Fatalf("GetVar: %v", err)
	}
	samples := v.Samples()
	if len(samples) != 1 || samples[0].Value != 150 {
		t.Fatalf("samples = %+v, want one sample with value 150 (1.5 x 100)", samples)
	}
}

func TestStoreDropsUnknownOIDSet(t *testing.T) {
	client := NewClient("/tsdb", nil)
	p := NewPersister(client, map[string]config.OIDSetConfig{}, oidtype.NewTable(nil), nil)

	result := pollresult.New("Unconfigured", "router1", "x", []pollresult.Sample{{Name: "x", Value: 1.0}}, nil)
	if err := p.Store(context.Background(), result); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := client.GetVar("router1/Unconfigured/x"); err == nil {
		t.Error("expected variable not to be created for an unconfigured oidset")
	}
}

func TestStoreCreatesAggregateForAggregateOID(t *testing.T) {
	client := NewClient("/tsdb", nil)
	oidSets := map[string]config.OIDSetConfig{
		"fastpoll": {
			Frequency: 30,
			OIDs: map[string]config.OIDConfig{
				"ifInOctets.1": {Aggregate: true},
			},
		},
	}
	p := NewPersister(client, oidSets, oidtype.NewTable(nil), nil)

	for i, ts := range []int64{1000, 1030, 1060} {
		result := pollresult.New("FastPoll", "router1", "ifInOctets", []pollresult.Sample{
			{Name: "ifInOctets.1", Value: float64(100 * (i + 1))},
		}, nil)
		result.Timestamp = ts
		if err := p.Store(context.Background(), result); err != nil {
			t.Fatalf("Store %d: %v", i, err)
		}
	}

	v, err := client.GetVar("router1/FastPoll/ifInOctets.1")
	if err != nil {
		t.Fatalf("GetVar: %v", err)
	}
	agg, err := v.Aggregate(30)
	if err != nil {
		t.Fatalf("Aggregate(30): %v", err)
	}
	if len(agg.Points()) == 0 {
		t.Error("expected at least one aggregate point after 3 increasing samples")
	}
}

func TestStoreSkipsSampleOnInvalidMetadata(t *testing.T) {
	client := NewClient("/tsdb", nil)
	oidSets := map[string]config.OIDSetConfig{"fastpoll": {Frequency: 30}}
	p := NewPersister(client, oidSets, oidtype.NewTable(nil), nil)

	result := pollresult.New("FastPoll", "router1", "x", []pollresult.Sample{{Name: "x", Value: 1.0}}, nil)
	result.Timestamp = 100
	if err := p.Store(context.Background(), result); err != nil {
		t.Fatalf("Store: %v", err)
	}
	v, _ := client.GetVar("router1/FastPoll/x")
	v.MarkInvalidMetadata()

	result2 := pollresult.New("FastPoll", "router1", "x", []pollresult.Sample{{Name: "x", Value: 2.0}}, nil)
	result2.Timestamp = 200
	if err := p.Store(context.Background(), result2); err != nil {
		t.Fatalf("Store with invalid metadata should log-and-skip, not error: %v", err)
	}
	if len(v.Samples()) != 1 {
		t.Errorf("expected the second sample to be skipped, got %d samples", len(v.Samples()))
	}
}
