// Package health exposes an HTTP health endpoint for espersistd workers:
// an overall status, per-queue persist counters, and how long since each
// queue last persisted successfully.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Server provides a health check endpoint.
type Server struct {
	config *Config
	server *http.Server
	log    *slog.Logger

	mu        sync.RWMutex
	queues    map[string]*queueHealth
	isHealthy bool
}

type queueHealth struct {
	lastPersistTime time.Time
	persistCount    int64
	successCount    int64
	failureCount    int64
}

// Config contains health check server configuration.
type Config struct {
	Enabled       bool
	Port          int
	Path          string
	ListenAddress string
}

// QueueStatus is one queue's counters in the JSON response.
type QueueStatus struct {
	LastPersistTime time.Time `json:"last_persist_time,omitempty"`
	PersistCount    int64     `json:"persist_count"`
	SuccessCount    int64     `json:"success_count"`
	FailureCount    int64     `json:"failure_count"`
}

// HealthResponse is the JSON response structure.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Queues    map[string]QueueStatus `json:"queues"`
	Uptime    string                 `json:"uptime"`
}

var startTime = time.Now()

// staleAfter is how long a queue can go without a successful persist
// before it drags the whole process into "unhealthy".
const staleAfter = 5 * time.Minute

// NewHealthServer creates a new health check server. It returns nil, nil
// when disabled, matching the teacher's opt-in health endpoint.
func NewHealthServer(cfg *Config, log *slog.Logger) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Server{
		config:    cfg,
		log:       log,
		queues:    make(map[string]*queueHealth),
		isHealthy: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, h.handleHealth)

	addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port)
	h.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("health endpoint started", "addr", addr, "path", cfg.Path)
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health server error", "error", err)
		}
	}()

	return h, nil
}

func (h *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	statusCode := http.StatusOK

	if !h.isHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	queues := make(map[string]QueueStatus, len(h.queues))
	for name, q := range h.queues {
		if q.persistCount > 0 && time.Since(q.lastPersistTime) > staleAfter {
			status = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		}
		queues[name] = QueueStatus{
			LastPersistTime: q.lastPersistTime,
			PersistCount:    q.persistCount,
			SuccessCount:    q.successCount,
			FailureCount:    q.failureCount,
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Queues:    queues,
		Uptime:    time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("encode health response", "error", err)
	}
}

// RecordPersist records one queue's persist attempt outcome.
func (h *Server) RecordPersist(queueName string, success bool) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	q, ok := h.queues[queueName]
	if !ok {
		q = &queueHealth{}
		h.queues[queueName] = q
	}
	q.persistCount++
	if success {
		q.lastPersistTime = time.Now()
		q.successCount++
	} else {
		q.failureCount++
	}
}

// SetHealthy overrides the overall health status reported by the
// endpoint.
func (h *Server) SetHealthy(healthy bool) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.isHealthy = healthy
}

// Stats returns one queue's current counters.
func (h *Server) Stats(queueName string) (persistCount, successCount, failureCount int64, lastPersistTime time.Time) {
	if h == nil {
		return 0, 0, 0, time.Time{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	q, ok := h.queues[queueName]
	if !ok {
		return 0, 0, 0, time.Time{}
	}
	return q.persistCount, q.successCount, q.failureCount, q.lastPersistTime
}

// Shutdown gracefully stops the health check server.
func (h *Server) Shutdown() error {
	if h == nil || h.server == nil {
		return nil
	}

	h.log.Info("health server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return h.server.Shutdown(ctx)
}
