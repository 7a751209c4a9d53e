package tsdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/esnet-tools/espersistd/internal/config"
	"github.com/esnet-tools/espersistd/internal/oidtype"
	"github.com/esnet-tools/espersistd/internal/persist"
	"github.com/esnet-tools/espersistd/internal/pollresult"
)

func init() {
	persist.Register("TSDBPersister", func(deps persist.Deps) (persist.Persister, error) {
		log := deps.Log
		if log == nil {
			log = slog.Default()
		}
		return NewPersister(NewClient(deps.TSDBRoot, log), deps.OIDSets, deps.OIDTypes, log), nil
	})
}

// baseAggregateFunctions and extraAggregateFunctions match the reference
// implementation's _create_agg/_create_aggs split exactly: the aggregate
// at the base period only tracks average/delta, while any additional
// aggregation periods configured for the OID-set also track min/max.
var (
	baseAggregateFunctions  = []string{"average", "delta"}
	extraAggregateFunctions = []string{"average", "delta", "min", "max"}
)

// maxRate is the hard cap on an aggregated rate (110 Gbit/s); values above
// it are dropped, not alerted on.
const maxRate = 110e9

// minLastUpdateWindow is the number of OID-set polling periods back from
// the current sample that still count as "recent enough" to aggregate.
const minLastUpdateWindow = 40

// Persister is the TSDB Persister (C5): it inserts samples and keeps
// derived rate aggregates current.
type Persister struct {
	client  *Client
	oidSets map[string]config.OIDSetConfig
	types   *oidtype.Table
	log     *slog.Logger
}

// NewPersister builds a TSDB Persister over an already-constructed client.
func NewPersister(client *Client, oidSets map[string]config.OIDSetConfig, types *oidtype.Table, log *slog.Logger) *Persister {
	if log == nil {
		log = slog.Default()
	}
	if types == nil {
		types = oidtype.NewTable(nil)
	}
	return &Persister{client: client, oidSets: oidSets, types: types, log: log}
}

// Store inserts every sample in result.Data into the TSDB and keeps
// derived aggregates up to date, per spec.md §4.4.
func (p *Persister) Store(ctx context.Context, result pollresult.Result) error {
	setCfg, ok := p.oidSets[strings.ToLower(result.OIDSetName)]
	if !ok {
		p.log.Error("no oidset configuration for result, dropping", "oidset_name", result.OIDSetName, "device_name", result.DeviceName)
		return nil
	}

	setName := setCfg.SetName
	if setName == "" {
		setName = result.OIDSetName
	}
	base := result.DeviceName + "/" + setName
	flags := result.TSDBFlags()

	for _, sample := range result.Data {
		oidCfg := setCfg.OIDs[sample.Name]
		value := coerceFloat(sample.Value)
		if setName == "SparkySet" {
			// Legacy calibration hack: preserve bit-for-bit.
			value = value * 100
		}

		varPath := base + "/" + sample.Name
		v, err := p.client.GetVar(varPath)
		if errors.Is(err, ErrVarNotFound) {
			if v, err = p.createVar(varPath, sample.Name, setCfg, oidCfg); err != nil {
				p.log.Error("tsdb variable create failed", "path", varPath, "error", err)
				continue
			}
		} else if err != nil {
			return fmt.Errorf("tsdb store %s: %w", varPath, err)
		}

		if err := v.Insert(Sample{Timestamp: result.Timestamp, Flags: flags, Value: value}); err != nil {
			if errors.Is(err, ErrInvalidMetadata) {
				p.repairVarMetadata(v)
				continue
			}
			return fmt.Errorf("tsdb insert %s: %w", varPath, err)
		}

		if oidCfg.Aggregate {
			p.updateAggregates(v, base, setCfg, result)
		}
	}
	return nil
}

func (p *Persister) createVar(varPath, oidName string, setCfg config.OIDSetConfig, oidCfg config.OIDConfig) (*Var, error) {
	ber := p.types.Lookup(oidName)
	rowType := oidtype.RowTypeFor(ber)
	v, err := p.client.AddVar(varPath, rowType, setCfg.Frequency, setCfg.ChunkMapper)
	if err != nil {
		return nil, err
	}
	if oidCfg.Aggregate {
		v.AddAggregate(setCfg.Frequency, setCfg.ChunkMapper, baseAggregateFunctions)
		for _, period := range setCfg.Aggregates {
			v.AddAggregate(period, setCfg.ChunkMapper, extraAggregateFunctions)
		}
	}
	return v, nil
}

func (p *Persister) updateAggregates(v *Var, base string, setCfg config.OIDSetConfig, result pollresult.Result) {
	var uptime *Var
	if u, err := p.client.GetVar(base + "/sysUpTime"); err == nil {
		uptime = u
	}

	minLastUpdate := result.Timestamp - minLastUpdateWindow*setCfg.Frequency
	callback := func(rate float64) {
		p.log.Warn("tsdb aggregate rate exceeds cap, dropping point", "path", v.Path, "rate", rate, "max_rate", maxRate)
	}

	p.updateOneAggregate(v, setCfg.Frequency, baseAggregateFunctions, setCfg.ChunkMapper, uptime, minLastUpdate, callback)
}

func (p *Persister) updateOneAggregate(v *Var, period int64, functions []string, chunkMapper string, uptime *Var, minLastUpdate int64, callback func(float64)) {
	agg, err := v.Aggregate(period)
	retried := false
	if errors.Is(err, ErrAggregateNotFound) {
		agg = v.AddAggregate(period, chunkMapper, functions)
		retried = true
		err = nil
	}
	if err != nil {
		p.log.Error("tsdb aggregate lookup failed", "path", v.Path, "period", period, "error", err)
		return
	}

	if updErr := v.UpdateAggregate(agg, uptime, minLastUpdate, maxRate, callback); updErr != nil {
		if errors.Is(updErr, ErrInvalidMetadata) {
			p.log.Error("tsdb aggregate has invalid metadata", "path", v.Path, "period", period)
			return
		}
		if errors.Is(updErr, ErrAggregateNotFound) && !retried {
			agg = v.AddAggregate(period, chunkMapper, functions)
			_ = v.UpdateAggregate(agg, uptime, minLastUpdate, maxRate, callback)
			return
		}
		p.log.Error("tsdb aggregate update failed", "path", v.Path, "period", period, "error", updErr)
	}
}

// repairVarMetadata mirrors the reference implementation's
// _repair_var_metadata: it is unfinished upstream and only logs. Do not
// invent a repair algorithm here.
func (p *Persister) repairVarMetadata(v *Var) {
	p.log.Warn("tsdb variable has invalid metadata, repair not implemented, skipping sample", "path", v.Path)
}

func coerceFloat(val any) float64 {
	switch t := val.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}
