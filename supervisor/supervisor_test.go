package supervisor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func TestExitCode(t *testing.T) {
	if err := exitCodeCase(t, "exit 0"); err != 0 {
		t.Errorf("clean exit 0 -> %d, want 0", err)
	}
	if err := exitCodeCase(t, "exit 3"); err != 3 {
		t.Errorf("exit 3 -> %d, want 3", err)
	}
	if err := exitCodeCase(t, "kill -TERM $$"); err != 1 {
		t.Errorf("self-signaled -> %d, want 1 (signaled collapses to 1)", err)
	}
	if got := exitCode(nil); got != 0 {
		t.Errorf("exitCode(nil) = %d, want 0", got)
	}
}

func exitCodeCase(t *testing.T, script string) int {
	t.Helper()
	cmd := exec.Command("/bin/sh", "-c", script)
	err := cmd.Run()
	return exitCode(err)
}

func TestSetStateSkipsRewriteOnRepeat(t *testing.T) {
	stateFile := filepath.Join(t.TempDir(), "state")
	m := New("", nil, stateFile, nil)

	if err := m.setState("OK"); err != nil {
		t.Fatalf("setState: %v", err)
	}
	first, err := os.Stat(stateFile)
	if err != nil {
		t.Fatalf("stat state file: %v", err)
	}

	if err := m.setState("OK"); err != nil {
		t.Fatalf("setState (repeat): %v", err)
	}
	second, err := os.Stat(stateFile)
	if err != nil {
		t.Fatalf("stat state file: %v", err)
	}
	if first.ModTime() != second.ModTime() {
		t.Errorf("state file rewritten on a repeated, unchanged state")
	}

	if err := m.setState("faulty"); err != nil {
		t.Fatalf("setState (change): %v", err)
	}
	data, err := os.ReadFile(stateFile)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	if string(data) != "faulty\n" {
		t.Errorf("state file = %q, want %q", data, "faulty\n")
	}
}

func TestRunOnceWorkerConnectsAndExitsClean(t *testing.T) {
	m := New("/bin/sh", []string{"-c", "echo hi >&3"}, "", nil)
	m.ConnTimeout = 50 * time.Millisecond

	code, err := m.runOnce(context.Background())
	if err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if code != 0 {
		t.Errorf("code = %d, want 0", code)
	}
}

func TestRunOnceKillsAnUnconfirmedWorker(t *testing.T) {
	m := New("/bin/sh", []string{"-c", "sleep 5"}, "", nil)
	m.ConnTimeout = 50 * time.Millisecond

	start := time.Now()
	code, err := m.runOnce(context.Background())
	if err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if code != 1 {
		t.Errorf("code = %d, want 1 (killed before confirming)", code)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("runOnce took %s, want it to abort near ConnTimeout", elapsed)
	}
}
