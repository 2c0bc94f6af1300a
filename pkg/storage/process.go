package storage

import (
	"context"
	"fmt"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"
)

// Process is a handle to a spawned backend process.
type Process interface {
	Pid() int
	Alive() bool
	Terminate() error
	Kill() error
	// Wait blocks until the process exits or the timeout elapses.
	Wait(timeout time.Duration) error
}

// ProcessRunner abstracts spawning of the managed backend process so the
// supervisor stays platform-agnostic and testable.
type ProcessRunner interface {
	Start(ctx context.Context, name string, args ...string) (Process, error)
}

// ExecRunner launches processes with os/exec.
type ExecRunner struct{}

// Start spawns the command and begins reaping it in the background.
func (ExecRunner) Start(ctx context.Context, name string, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	p := &execProcess{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		p.exited.Store(true)
		close(p.done)
	}()

	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	exited atomic.Bool
	done   chan struct{}
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Alive() bool {
	return !p.exited.Load()
}

func (p *execProcess) Terminate() error {
	if p.exited.Load() {
		return nil
	}
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *execProcess) Kill() error {
	if p.exited.Load() {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *execProcess) Wait(timeout time.Duration) error {
	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for process %d to exit", p.Pid())
	}
}
