// Package intake runs the HTTP surface the poller pushes PollResults
// through before they reach the Persist Router (C4). espersistd never
// polls devices itself (spec.md §1); this is the boundary where an
// upstream poller process's results enter the persistence tier.
package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/esnet-tools/espersistd/internal/pollresult"
)

// Router is the subset of router.Router that intake depends on.
type Router interface {
	Put(ctx context.Context, result pollresult.Result) error
}

// Server accepts poll results over HTTP and forwards each to a Router.
// One result per POST body, matching the router's per-result, never-
// blocks-long contract.
type Server struct {
	router Router
	server *http.Server
	log    *slog.Logger
}

// New builds an intake server listening on addr, POSTing JSON-encoded
// pollresult.Result bodies to path (default "/results").
func New(addr, path string, router Router, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if path == "" {
		path = "/results"
	}

	s := &Server{router: router, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handleResult)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run starts the HTTP server and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("intake: listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	result, err := pollresult.Unmarshal(body)
	if err != nil {
		s.log.Error("intake: malformed result, dropping", "error", err)
		http.Error(w, fmt.Sprintf("decode result: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.router.Put(r.Context(), result); err != nil {
		s.log.Error("intake: route failed", "oidset_name", result.OIDSetName, "error", err)
		http.Error(w, "route failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "accepted"}); err != nil {
		s.log.Error("intake: encode response", "error", err)
	}
}
