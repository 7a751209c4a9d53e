// Package streaming implements the Streaming Persister (C7): an
// append-only, hour-bucketed text log of poll results, grounded on
// kazuyuki114-snmp_collector/transport/file's mutex-guarded io.WriteCloser
// shape but rotated by name (the result's UTC hour bucket) rather than by
// size.
package streaming

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/esnet-tools/espersistd/internal/persist"
	"github.com/esnet-tools/espersistd/internal/pollresult"
)

func init() {
	persist.Register("StreamingPersister", func(deps persist.Deps) (persist.Persister, error) {
		log := deps.Log
		if log == nil {
			log = slog.Default()
		}
		return NewPersister(deps.StreamingLogDir, log)
	})
}

// bucketLayout derives the hour-bucketed file name from a timestamp, per
// spec.md §4.6: "YYYYMMDD_HH".
const bucketLayout = "20060102_15"

// Persister writes one text record per poll result, followed by a blank
// line, into the file named after the result's UTC hour bucket. When a
// result's bucket differs from the currently open file, the open file is
// closed and the new one opened in append mode.
type Persister struct {
	mu     sync.Mutex
	dir    string
	log    *slog.Logger
	bucket string
	file   *os.File
}

// NewPersister opens (lazily, on first Store) hour-bucketed files under dir.
func NewPersister(dir string, log *slog.Logger) (*Persister, error) {
	if dir == "" {
		return nil, fmt.Errorf("streaming: log dir is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("streaming: mkdir %s: %w", dir, err)
	}
	return &Persister{dir: dir, log: log}, nil
}

// Store appends one text record, followed by a blank line, to the file
// named after result's UTC hour bucket, rotating as needed.
func (p *Persister) Store(ctx context.Context, result pollresult.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := result.Time().UTC().Format(bucketLayout)
	if bucket != p.bucket || p.file == nil {
		if err := p.rotate(bucket); err != nil {
			return err
		}
	}

	record := formatRecord(result)
	if _, err := p.file.WriteString(record); err != nil {
		return fmt.Errorf("streaming: write %s: %w", p.bucket, err)
	}
	if _, err := p.file.WriteString("\n\n"); err != nil {
		return fmt.Errorf("streaming: write blank line %s: %w", p.bucket, err)
	}
	return nil
}

// Close releases the currently open file, if any.
func (p *Persister) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}

func (p *Persister) rotate(bucket string) error {
	if p.file != nil {
		if err := p.file.Close(); err != nil {
			p.log.Warn("streaming: close old bucket failed", "bucket", p.bucket, "error", err)
		}
	}

	path := filepath.Join(p.dir, bucket)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("streaming: open %s: %w", path, err)
	}
	p.file = f
	p.bucket = bucket
	p.log.Info("streaming: rotated to bucket", "bucket", bucket)
	return nil
}

// formatRecord renders one poll result as a single text line: the
// reference implementation's "text-encoded form" is reproduced here as
// one JSON object per record, consistent with the rest of the pipeline's
// encoding/json choice for PollResult.
func formatRecord(result pollresult.Result) string {
	b, err := pollresult.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"error":%q,"device":%q,"oidset":%q}`, err.Error(), result.DeviceName, result.OIDSetName)
	}
	return string(b)
}
