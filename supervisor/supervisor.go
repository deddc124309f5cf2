// Package supervisor implements the Monitor: the long-lived parent
// process that forks a fresh worker, watches it connect through a
// feedback pipe, and republishes its own view of the worker's health as
// a state file.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package supervisor

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/aistorehq/georepd/cmn/cos"
	"github.com/aistorehq/georepd/cmn/nlog"
	"github.com/aistorehq/georepd/metrics"
)

// feedbackFD is the file descriptor the worker's write end of the
// feedback pipe lands on in the child, once exec.Cmd.ExtraFiles places
// it right after stdin/stdout/stderr.
const feedbackFD = 3

// connTimeout bounds both how long the monitor waits for a freshly
// started worker to write anything to the feedback pipe, and (measured
// from the same start time) how long it waits afterward before
// declaring the worker durably up.
const connTimeout = 60 * time.Second

// restartDelay caps the exponential backoff between a dead worker and
// the next spawn attempt. The pause is not a fixed 10s: it starts near
// 1s, grows while workers keep dying in quick succession, and drops back
// to the 1s start once a worker survives startup.
const restartDelay = 10 * time.Second

// Monitor supervises repeated invocations of a single worker command.
type Monitor struct {
	self       string   // path to this binary
	workerArgv []string // worker-mode arguments, without --feedback-fd

	stateFile string
	metrics   *metrics.Set
	state     string
	bo        *backoff.ExponentialBackOff

	// ConnTimeout overrides connTimeout; exported so tests can shrink it
	// instead of waiting out the full 60s default.
	ConnTimeout time.Duration
}

// New constructs a Monitor. self is this binary's own path (for
// re-exec); workerArgv is the argument list that puts it into worker
// mode. stateFile may be empty to disable state-file publication.
func New(self string, workerArgv []string, stateFile string, m *metrics.Set) *Monitor {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = restartDelay
	bo.MaxElapsedTime = 0 // never stop retrying on its own
	return &Monitor{
		self: self, workerArgv: workerArgv, stateFile: stateFile, metrics: m, bo: bo,
		ConnTimeout: connTimeout,
	}
}

// Run spawns workers until one exits with a code outside {0, 1}, which
// it treats as a deliberate "stop retrying" signal from the worker, or
// until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.setState("starting..."); err != nil {
		nlog.Warningf("supervisor: persist state: %v", err)
	}

	ret := 0
	for ret == 0 || ret == 1 {
		nlog.Infof(strings.Repeat("-", 60))
		nlog.Infof("starting worker")

		code, err := m.runOnce(ctx)
		if err != nil {
			return err
		}
		ret = code

		if ret == 0 || ret == 1 {
			if serr := m.setState("faulty"); serr != nil {
				nlog.Warningf("supervisor: persist state: %v", serr)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.bo.NextBackOff()):
		}
	}

	if err := m.setState("inconsistent"); err != nil {
		nlog.Warningf("supervisor: persist state: %v", err)
	}
	return nil
}

// runOnce spawns one worker and runs it to completion, returning its
// interpreted exit code (see exitCode): 0 on a clean exit, the worker's
// own status on a non-zero exit, and 1 on a signal death, including a
// forced kill after connTimeout.
func (m *Monitor) runOnce(ctx context.Context) (int, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return 0, errors.Wrap(err, "create feedback pipe")
	}
	defer pr.Close()

	cmd := exec.Command(m.self, m.workerArgv...)
	cmd.Args = append(cmd.Args, "--feedback-fd", "3")
	cmd.ExtraFiles = []*os.File{pw}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		pw.Close()
		return 0, errors.Wrap(err, "start worker")
	}
	pw.Close()

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	confirmCh := make(chan struct{})
	go func() {
		buf := make([]byte, 1)
		pr.Read(buf) //nolint:errcheck // any read outcome (data or EOF) confirms the child is alive
		close(confirmCh)
	}()

	t0 := time.Now()
	select {
	case werr := <-waitCh:
		nlog.Warningf("worker died before establishing connection")
		return exitCode(werr), nil
	case <-confirmCh:
		nlog.Infof("worker connected")
	case <-time.After(m.ConnTimeout):
		nlog.Warningf("worker not confirmed in %s, aborting it", m.ConnTimeout)
		_ = cmd.Process.Signal(syscall.SIGKILL)
		return exitCode(<-waitCh), nil
	}

	remaining := m.ConnTimeout - time.Since(t0)
	if remaining < 0 {
		remaining = 0
	}
	select {
	case werr := <-waitCh:
		nlog.Warningf("worker died in startup phase")
		return exitCode(werr), nil
	case <-time.After(remaining):
	}

	if err := m.setState("OK"); err != nil {
		nlog.Warningf("supervisor: persist state: %v", err)
	}
	m.bo.Reset() // the worker survived startup; restart pressure resets too
	return exitCode(<-waitCh), nil
}

// exitCode normalizes a cmd.Wait() error into an integer exit status:
// 0 for a clean exit, the process's own code for a nonzero exit, and 1
// for anything that isn't a plain exit (signaled, or a Wait-level
// error).
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return 1
			}
			return ws.ExitStatus()
		}
		return 1
	}
	return 1
}

// setState updates the in-memory state, logs the transition, mirrors it
// into the metrics gauge, and persists it to StateFile if configured.
// A no-op if state hasn't changed, matching the peer's own
// change-gated state file writes.
func (m *Monitor) setState(state string) error {
	if state == m.state {
		return nil
	}
	m.state = state
	nlog.Infof("new state: %s", state)

	if m.metrics != nil {
		m.metrics.SupervisorState.Reset()
		m.metrics.SupervisorState.WithLabelValues(state).Set(1)
	}
	if m.stateFile == "" {
		return nil
	}
	return cos.WriteFileAtomic(m.stateFile, []byte(state+"\n"), 0o644)
}

// FeedbackFD is exported so a worker built with cmd/georepd can report
// readiness by writing a single byte to this fd, once its dup'd down
// from feedbackFD by the caller.
const FeedbackFD = feedbackFD
