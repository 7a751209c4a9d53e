// Package supervisor implements the Supervisor (C9): spawns one child
// process per (queue, ordinal) pair, reaps and respawns on exit, and
// forwards SIGTERM for cooperative shutdown. Grounded on
// internet-connection-monitor/cmd/monitor/main.go's
// context.WithCancel-plus-signal.Notify pattern, generalized from a
// single in-process loop to an os/exec-based process table.
package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
)

// ChildSpec describes one worker process to keep running.
type ChildSpec struct {
	QueueName string
	Class     string
	Ordinal   int
}

// child tracks one running process and how to restart it.
type child struct {
	spec   ChildSpec
	cmd    *exec.Cmd
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

// PingFunc checks database connectivity before any workers are spawned.
type PingFunc func(ctx context.Context) error

// Supervisor owns the worker process table.
type Supervisor struct {
	Executable string
	ConfigFile string
	Debug      bool
	Ping       PingFunc
	Log        *slog.Logger

	mu       sync.Mutex
	children map[int]*child
	exitCh   chan int
}

// New builds a Supervisor. executable is the path to re-exec for each
// worker (normally os.Executable()).
func New(executable, configFile string, debug bool, ping PingFunc, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		Executable: executable,
		ConfigFile: configFile,
		Debug:      debug,
		Ping:       ping,
		Log:        log,
		children:   map[int]*child{},
	}
}

// Run performs the fatal-at-start database check, spawns every spec in
// specs, then blocks reaping and respawning children until it receives
// SIGINT/SIGTERM, at which point it forwards SIGTERM to every remaining
// child, reaps them, and returns.
func (s *Supervisor) Run(ctx context.Context, specs []ChildSpec) error {
	if s.Ping != nil {
		if err := s.Ping(ctx); err != nil {
			return fmt.Errorf("supervisor: database unreachable at startup: %w", err)
		}
	}

	s.exitCh = make(chan int, len(specs))

	for _, spec := range specs {
		if err := s.spawn(spec); err != nil {
			return fmt.Errorf("supervisor: spawn %s/%d: %w", spec.QueueName, spec.Ordinal, err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-sigCh:
			s.Log.Info("supervisor: received shutdown signal")
			s.shutdown()
			return nil
		case pid := <-s.exitCh:
			s.respawn(pid)
		case <-ctx.Done():
			s.shutdown()
			return nil
		}
	}
}

// spawn starts one child process for spec and records it in the table.
func (s *Supervisor) spawn(spec ChildSpec) error {
	args := []string{
		"--role=worker",
		"--queue=" + spec.QueueName,
		fmt.Sprintf("--number=%d", spec.Ordinal),
	}
	if s.ConfigFile != "" {
		args = append(args, "--config-file="+s.ConfigFile)
	}
	if s.Debug {
		args = append(args, "--debug")
	}

	cmd := exec.Command(s.Executable, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.Executable, err)
	}

	pid := cmd.Process.Pid
	s.mu.Lock()
	c := &child{spec: spec, cmd: cmd, stdout: &stdout, stderr: &stderr}
	s.children[pid] = c
	s.mu.Unlock()

	s.Log.Info("supervisor: spawned worker", "queue", spec.QueueName, "class", spec.Class, "ordinal", spec.Ordinal, "pid", pid)

	go s.waitChild(pid, c)
	return nil
}

// waitChild blocks on one child's exit and reports its pid on exitCh. Each
// spawned process gets its own waiter goroutine so that one long-lived
// child never delays reaping another that has already exited —
// sequential, single-goroutine Wait()-ing would let a dead sibling sit
// unreaped until the one currently blocked on also exits.
func (s *Supervisor) waitChild(pid int, c *child) {
	if err := c.cmd.Wait(); err != nil {
		s.Log.Error("supervisor: child exited with error", "queue", c.spec.QueueName, "ordinal", c.spec.Ordinal, "pid", pid, "error", err, "stdout", c.stdout.String(), "stderr", c.stderr.String())
	} else {
		s.Log.Warn("supervisor: child exited", "queue", c.spec.QueueName, "ordinal", c.spec.Ordinal, "pid", pid, "stdout", c.stdout.String(), "stderr", c.stderr.String())
	}
	s.exitCh <- pid
}

// respawn removes the dead child's table entry and starts a replacement
// with the same spec.
func (s *Supervisor) respawn(pid int) {
	s.mu.Lock()
	c, ok := s.children[pid]
	if ok {
		delete(s.children, pid)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	if err := s.spawn(c.spec); err != nil {
		s.Log.Error("supervisor: respawn failed", "queue", c.spec.QueueName, "ordinal", c.spec.Ordinal, "error", err)
	}
}

// shutdown sends SIGTERM to every remaining child and reaps it. It never
// force-kills: workers are expected to exit on signal. Reaping happens
// through each child's own waitChild goroutine reporting on s.exitCh
// rather than a direct cmd.Wait() here, since Wait must only be called
// once per *exec.Cmd.
func (s *Supervisor) shutdown() {
	s.mu.Lock()
	pending := make(map[int]bool, len(s.children))
	for pid, c := range s.children {
		pending[pid] = true
		if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			s.Log.Warn("supervisor: signal child failed", "pid", pid, "error", err)
			delete(pending, pid)
		}
	}
	s.mu.Unlock()

	for len(pending) > 0 {
		pid := <-s.exitCh
		delete(pending, pid)
	}

	s.mu.Lock()
	s.children = map[int]*child{}
	s.mu.Unlock()
}

// Children returns a snapshot of the current process table.
func (s *Supervisor) Children() []ChildSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChildSpec, 0, len(s.children))
	for _, c := range s.children {
		out = append(out, c.spec)
	}
	return out
}
