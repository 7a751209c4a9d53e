package supervisor

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"testing"
	"time"
)

// TestMain lets this test binary re-exec itself as a fake worker process:
// when GO_WANT_SUPERVISOR_HELPER is set, it behaves as a worker subprocess
// (sleeping until it receives SIGTERM, or exiting immediately for the
// kill scenario) instead of running the test suite.
func TestMain(m *testing.M) {
	if os.Getenv("GO_WANT_SUPERVISOR_HELPER") == "1" {
		runHelper()
		return
	}
	os.Exit(m.Run())
}

func runHelper() {
	if os.Getenv("GO_SUPERVISOR_HELPER_EXIT_IMMEDIATELY") == "1" {
		os.Exit(0)
	}
	select {}
}

func testExecutable(t *testing.T) string {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	return exe
}

func TestSupervisorSpawnsOneChildPerSpec(t *testing.T) {
	exe := testExecutable(t)
	s := New(exe, "", false, nil, slog.Default())
	s.Executable = exe

	specs := []ChildSpec{
		{QueueName: "tsdb", Class: "TSDBPersister", Ordinal: 0},
		{QueueName: "tsdb", Class: "TSDBPersister", Ordinal: 1},
	}

	for _, spec := range specs {
		cmd := helperCommand(t, false)
		if err := spawnTestChild(s, spec, cmd); err != nil {
			t.Fatalf("spawn: %v", err)
		}
	}

	if got := len(s.Children()); got != 2 {
		t.Fatalf("children = %d, want 2", got)
	}

	s.shutdown()
}

func helperCommand(t *testing.T, exitImmediately bool) *exec.Cmd {
	t.Helper()
	exe := testExecutable(t)
	cmd := exec.Command(exe, "-test.run=TestMain")
	cmd.Env = append(os.Environ(), "GO_WANT_SUPERVISOR_HELPER=1")
	if exitImmediately {
		cmd.Env = append(cmd.Env, "GO_SUPERVISOR_HELPER_EXIT_IMMEDIATELY=1")
	}
	return cmd
}

// spawnTestChild bypasses Supervisor.spawn's fixed argv construction so
// the test can substitute the pre-built helper command while reusing the
// table bookkeeping and per-child waiter goroutine Supervisor.spawn sets up.
func spawnTestChild(s *Supervisor, spec ChildSpec, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.exitCh == nil {
		s.exitCh = make(chan int, 8)
	}
	c := &child{spec: spec, cmd: cmd, stdout: new(bytes.Buffer), stderr: new(bytes.Buffer)}
	s.children[cmd.Process.Pid] = c
	s.mu.Unlock()
	go s.waitChild(cmd.Process.Pid, c)
	return nil
}

func TestSupervisorRespawnsOnChildExit(t *testing.T) {
	s := New(testExecutable(t), "", false, nil, slog.Default())

	spec := ChildSpec{QueueName: "history", Class: "IfRefPersister", Ordinal: 0}
	cmd := helperCommand(t, true) // exits immediately
	if err := spawnTestChild(s, spec, cmd); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	select {
	case pid := <-s.exitCh:
		s.respawnWithHelper(t, pid)
	case <-time.After(5 * time.Second):
		t.Fatal("child did not report exit in time")
	}

	children := s.Children()
	if len(children) != 1 || children[0].QueueName != "history" || children[0].Ordinal != 0 {
		t.Fatalf("expected one respawned child for history/0, got %+v", children)
	}

	s.shutdown()
}

// respawnWithHelper mirrors Supervisor.respawn but starts the test helper
// binary instead of the production Executable, matching scenario S5: the
// same (queue, ordinal) is present after the dead child is reaped.
func (s *Supervisor) respawnWithHelper(t *testing.T, pid int) {
	s.mu.Lock()
	c, ok := s.children[pid]
	if ok {
		delete(s.children, pid)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	cmd := helperCommand(t, false)
	if err := spawnTestChild(s, c.spec, cmd); err != nil {
		t.Fatalf("respawn: %v", err)
	}
}

// TestSupervisorReapsDeadChildWhileSiblingLives exercises scenario S5 with
// two live children: one exits immediately while the other keeps running,
// and a replacement for the dead one must appear without waiting on the
// live sibling.
func TestSupervisorReapsDeadChildWhileSiblingLives(t *testing.T) {
	s := New(testExecutable(t), "", false, nil, slog.Default())

	liveSpec := ChildSpec{QueueName: "tsdb", Class: "TSDBPersister", Ordinal: 0}
	if err := spawnTestChild(s, liveSpec, helperCommand(t, false)); err != nil {
		t.Fatalf("spawn live: %v", err)
	}

	deadSpec := ChildSpec{QueueName: "history", Class: "IfRefPersister", Ordinal: 0}
	if err := spawnTestChild(s, deadSpec, helperCommand(t, true)); err != nil {
		t.Fatalf("spawn dead: %v", err)
	}

	select {
	case pid := <-s.exitCh:
		s.respawnWithHelper(t, pid)
	case <-time.After(5 * time.Second):
		t.Fatal("dead child did not report exit while sibling was still live")
	}

	var sawHistory, sawTSDB bool
	for _, c := range s.Children() {
		if c.QueueName == "history" && c.Ordinal == 0 {
			sawHistory = true
		}
		if c.QueueName == "tsdb" && c.Ordinal == 0 {
			sawTSDB = true
		}
	}
	if !sawHistory || !sawTSDB {
		t.Fatalf("expected both history/0 (respawned) and tsdb/0 (still live), got %+v", s.Children())
	}

	s.shutdown()
}

func TestSupervisorPingFailureAbortsStartup(t *testing.T) {
	s := New(testExecutable(t), "", false, func(ctx context.Context) error {
		return context.DeadlineExceeded
	}, slog.Default())

	err := s.Run(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error when ping fails")
	}
}
