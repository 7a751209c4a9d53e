// Package pollresult defines the immutable record handed from a poller to
// the persistence tier.
package pollresult

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sample is one (name, value) pair collected for an OID-set.
type Sample struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Result is one device x one OID-set x one timestamp of collected values.
// Once constructed it is never mutated; it is dropped after persistence.
type Result struct {
	ID         uuid.UUID         `json:"id"`
	OIDSetName string            `json:"oidset_name"`
	DeviceName string            `json:"device_name"`
	OIDName    string            `json:"oid_name"`
	Timestamp  int64             `json:"timestamp"`
	Data       []Sample          `json:"data"`
	Metadata   map[string]string `json:"metadata"`
}

// New builds a Result with a fresh correlation ID and the current time
// truncated to the second, matching the epoch-seconds timestamp the
// original poller produced.
func New(oidsetName, deviceName, oidName string, data []Sample, metadata map[string]string) Result {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return Result{
		ID:         uuid.New(),
		OIDSetName: oidsetName,
		DeviceName: deviceName,
		OIDName:    oidName,
		Timestamp:  time.Now().Unix(),
		Data:       data,
		Metadata:   metadata,
	}
}

// Time returns the poll timestamp as a UTC time.Time.
func (r Result) Time() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// TSDBFlags returns the tsdb_flags metadata value, or 0 if absent.
func (r Result) TSDBFlags() uint32 {
	raw, ok := r.Metadata["tsdb_flags"]
	if !ok {
		return 0
	}
	var flags uint32
	if _, err := fmt.Sscanf(raw, "%d", &flags); err != nil {
		return 0
	}
	return flags
}

// Marshal encodes the result as JSON. The original implementation used a
// tagged binary encoding (pickle); JSON is used here because it round-trips
// the opaque Data/Metadata maps verbatim and every collaborator in this
// repo already speaks JSON (config, Elasticsearch sink, Prometheus
// exposition is separate).
func Marshal(r Result) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal poll result: %w", err)
	}
	return b, nil
}

// Unmarshal decodes a result previously produced by Marshal.
func Unmarshal(b []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(b, &r); err != nil {
		return Result{}, fmt.Errorf("unmarshal poll result: %w", err)
	}
	return r, nil
}

// DataMap returns Data as a map keyed by sample name, the shape the history
// persister needs ("a mapping from OID name to such a sequence").
func (r Result) DataMap() map[string]any {
	m := make(map[string]any, len(r.Data))
	for _, s := range r.Data {
		m[s.Name] = s.Value
	}
	return m
}
