package inspector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
)

// ESSink bulk-indexes each tick's queue-depth snapshot into Elasticsearch,
// adapted from internet-connection-monitor/internal/outputs/elasticsearch.go's
// esutil.BulkIndexer wiring: the teacher indexes one document per web
// probe result, this indexes one document per queue per tick.
type ESSink struct {
	indexer esutil.BulkIndexer
	index   string
	log     *slog.Logger
}

// NewESSink connects to uri and builds a bulk indexer targeting index.
func NewESSink(uri, index string, log *slog.Logger) (*ESSink, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{uri},
		RetryOnStatus: []int{502, 503, 504, 429},
	})
	if err != nil {
		return nil, fmt.Errorf("inspector: new es client: %w", err)
	}

	indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        client,
		Index:         index,
		NumWorkers:    1,
		FlushInterval: pollInterval,
		OnError: func(ctx context.Context, err error) {
			log.Error("inspector: es bulk indexer error", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("inspector: new bulk indexer: %w", err)
	}

	return &ESSink{indexer: indexer, index: index, log: log}, nil
}

// esDoc is one indexed document: a queue's counters at a tick.
type esDoc struct {
	Timestamp time.Time `json:"@timestamp"`
	Queue     string    `json:"queue"`
	Pending   int64     `json:"pending"`
	New       int64     `json:"new"`
	Done      int64     `json:"done"`
	LastAdded int64     `json:"last_added"`
}

func (s *ESSink) Record(ctx context.Context, snapshot []QueueStat) error {
	now := time.Now().UTC()
	for _, stat := range snapshot {
		doc := esDoc{Timestamp: now, Queue: stat.Name, Pending: stat.Pending, New: stat.New, Done: stat.Done, LastAdded: stat.LastAdded}
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("inspector: marshal doc: %w", err)
		}
		if err := s.indexer.Add(ctx, esutil.BulkIndexerItem{
			Action: "index",
			Body:   strings.NewReader(string(body)),
		}); err != nil {
			return fmt.Errorf("inspector: bulk add: %w", err)
		}
	}
	return nil
}

// Close flushes and releases the bulk indexer.
func (s *ESSink) Close() error {
	return s.indexer.Close(context.Background())
}
