// Package tsdb implements the in-memory hierarchical time-series store
// used by the TSDB Persister, exposing the get_var/add_var/add_aggregate/
// insert/update_aggregate/flush surface required by spec.md §6. The
// window-bucket-and-mutex shape is grounded on
// RandomCodeSpace-Project-Argus's internal/tsdb aggregator, adapted from a
// single flat bucket map into a path-addressed variable tree with
// explicit aggregate sub-objects, since a production deployment would
// swap this package for a real chunked TSDB client behind the same
// interface.
package tsdb

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/esnet-tools/espersistd/internal/oidtype"
)

// Sentinel errors standing in for the reference implementation's
// TSDBVarDoesNotExistError, TSDBAggregateDoesNotExistError, and
// InvalidMetaData exceptions.
var (
	ErrVarNotFound       = errors.New("tsdb: variable does not exist")
	ErrAggregateNotFound = errors.New("tsdb: aggregate does not exist")
	ErrInvalidMetadata   = errors.New("tsdb: invalid variable metadata")
)

// Sample is one inserted data point.
type Sample struct {
	Timestamp int64
	Flags     uint32
	Value     float64
}

// AggregatePoint is one computed point of a derived aggregate.
type AggregatePoint struct {
	Timestamp int64
	Values    map[string]float64
}

// Aggregate is a derived time series computed from a base variable at a
// coarser period.
type Aggregate struct {
	Period      int64
	ChunkMapper string
	Functions   []string

	mu         sync.Mutex
	points     []AggregatePoint
	lastUpdate int64
}

// Points returns a copy of the aggregate's computed points.
func (a *Aggregate) Points() []AggregatePoint {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]AggregatePoint, len(a.points))
	copy(out, a.points)
	return out
}

// Var is a named, periodic time series rooted at <device>/<set_name>/<var>.
type Var struct {
	Path        string
	RowType     oidtype.RowType
	Frequency   int64
	ChunkMapper string

	mu              sync.Mutex
	samples         []Sample
	aggregates      map[int64]*Aggregate
	invalidMetadata bool
}

// Samples returns a copy of the variable's inserted samples, in insertion
// order.
func (v *Var) Samples() []Sample {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Sample, len(v.samples))
	copy(out, v.samples)
	return out
}

// Insert appends a sample. Every sample inserted must be monotonic per
// variable; that invariant is the TSDB's responsibility, not the
// persister's, so it is enforced here rather than upstream.
func (v *Var) Insert(sample Sample) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.invalidMetadata {
		return fmt.Errorf("insert %s: %w", v.Path, ErrInvalidMetadata)
	}
	if n := len(v.samples); n > 0 && sample.Timestamp < v.samples[n-1].Timestamp {
		return fmt.Errorf("insert %s: timestamp %d older than last sample %d", v.Path, sample.Timestamp, v.samples[n-1].Timestamp)
	}
	v.samples = append(v.samples, sample)
	return nil
}

// AddAggregate creates a derived aggregate at the given period if one does
// not already exist.
func (v *Var) AddAggregate(period int64, chunkMapper string, functions []string) *Aggregate {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.aggregates == nil {
		v.aggregates = map[int64]*Aggregate{}
	}
	if agg, ok := v.aggregates[period]; ok {
		return agg
	}
	agg := &Aggregate{Period: period, ChunkMapper: chunkMapper, Functions: functions}
	v.aggregates[period] = agg
	return agg
}

// Aggregate looks up an existing aggregate by period.
func (v *Var) Aggregate(period int64) (*Aggregate, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	agg, ok := v.aggregates[period]
	if !ok {
		return nil, fmt.Errorf("aggregate %s@%d: %w", v.Path, period, ErrAggregateNotFound)
	}
	return agg, nil
}

// MarkInvalidMetadata flags the variable as having corrupt metadata, the
// condition the persister must detect and skip rather than repair.
func (v *Var) MarkInvalidMetadata() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.invalidMetadata = true
}

func (v *Var) lastSample() (Sample, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.samples) == 0 {
		return Sample{}, false
	}
	return v.samples[len(v.samples)-1], true
}

// UpdateAggregate recomputes agg from v's samples. uptime, if non-nil, is
// the sibling sysUpTime variable; its latest sample is read but does not
// affect the result. A counter reset is detected only as a negative delta
// between consecutive samples, which starts a fresh baseline without
// emitting a point rather than reporting a bogus spike. Points whose computed
// rate exceeds maxRate are dropped and reported through maxRateCallback,
// matching the "bad-data guard is informational" design note: the value
// is dropped, not alerted on.
func (v *Var) UpdateAggregate(agg *Aggregate, uptime *Var, minLastUpdate int64, maxRate float64, maxRateCallback func(rate float64)) error {
	if v.invalidMetadata {
		return fmt.Errorf("update_aggregate %s: %w", v.Path, ErrInvalidMetadata)
	}

	samples := v.Samples()
	agg.mu.Lock()
	defer agg.mu.Unlock()

	var prevUptime *Sample
	if uptime != nil {
		if s, ok := uptime.lastSample(); ok {
			prevUptime = &s
		}
	}
	_ = prevUptime // the uptime reading is not used in the rate computation below.

	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]
		if cur.Timestamp <= agg.lastUpdate || cur.Timestamp < minLastUpdate {
			continue
		}
		dt := cur.Timestamp - prev.Timestamp
		if dt <= 0 {
			continue
		}
		delta := cur.Value - prev.Value
		rate := delta / float64(dt)
		if rate < 0 {
			// counter reset: treat as a fresh baseline, no rate point emitted.
			agg.lastUpdate = cur.Timestamp
			continue
		}
		if rate > maxRate {
			if maxRateCallback != nil {
				maxRateCallback(rate)
			}
			agg.lastUpdate = cur.Timestamp
			continue
		}
		agg.points = append(agg.points, AggregatePoint{
			Timestamp: cur.Timestamp,
			Values: map[string]float64{
				"average": rate,
				"delta":   delta,
			},
		})
		agg.lastUpdate = cur.Timestamp
	}
	return nil
}

// Flush is a no-op for the in-memory store; a real chunked TSDB would sync
// buffered chunks to disk here.
func (v *Var) Flush() error { return nil }

// Client is the hierarchical TSDB client rooted at a configured path.
type Client struct {
	root string
	log  *slog.Logger

	mu   sync.RWMutex
	vars map[string]*Var
}

// NewClient constructs a Client rooted at root.
func NewClient(root string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{root: root, log: log, vars: map[string]*Var{}}
}

// GetVar looks up an existing variable by path.
func (c *Client) GetVar(path string) (*Var, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vars[path]
	if !ok {
		return nil, fmt.Errorf("get_var %s: %w", path, ErrVarNotFound)
	}
	return v, nil
}

// AddVar creates a variable at path with the given row type, sampling
// frequency, and chunk mapper. Creating an already-existing variable
// returns the existing one rather than erroring, matching "created on
// demand".
func (c *Client) AddVar(path string, rowType oidtype.RowType, frequency int64, chunkMapper string) (*Var, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.vars[path]; ok {
		return v, nil
	}
	v := &Var{Path: path, RowType: rowType, Frequency: frequency, ChunkMapper: chunkMapper}
	c.vars[path] = v
	c.log.Debug("tsdb variable created", "path", path, "frequency", frequency)
	return v, nil
}
