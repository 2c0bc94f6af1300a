package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

const pidFileName = "vechnost.pid"

// LifecycleManager tracks the daemon's PID file so the CLI can find a
// running instance.
type LifecycleManager struct {
	daemon  *Daemon
	pidFile string
}

// NewLifecycleManager creates a lifecycle manager for the daemon.
func NewLifecycleManager(d *Daemon) *LifecycleManager {
	return &LifecycleManager{
		daemon:  d,
		pidFile: filepath.Join(d.config.DataDir, pidFileName),
	}
}

// Start claims the PID file. It fails when another live instance holds it
// and replaces a stale file left behind by a crashed one.
func (lm *LifecycleManager) Start() error {
	if pid, err := lm.GetPID(); err == nil {
		if processAlive(pid) {
			return fmt.Errorf("daemon already running with PID %d", pid)
		}
		lm.daemon.logger.Warn().Int("pid", pid).Msg("Removing stale PID file")
		_ = os.Remove(lm.pidFile)
	}

	return lm.writePIDFile()
}

// Stop removes the PID file.
func (lm *LifecycleManager) Stop() error {
	if err := os.Remove(lm.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

func (lm *LifecycleManager) writePIDFile() error {
	if err := os.MkdirAll(filepath.Dir(lm.pidFile), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	pid := os.Getpid()
	if err := os.WriteFile(lm.pidFile, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	lm.daemon.logger.Debug().Int("pid", pid).Str("file", lm.pidFile).Msg("PID file written")
	return nil
}

// GetPID reads the PID from the PID file.
func (lm *LifecycleManager) GetPID() (int, error) {
	data, err := os.ReadFile(lm.pidFile)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file contents: %w", err)
	}
	return pid, nil
}

// IsRunning reports whether the PID file points at a live process.
func (lm *LifecycleManager) IsRunning() bool {
	pid, err := lm.GetPID()
	if err != nil {
		return false
	}
	return processAlive(pid)
}

// PIDFile returns the path of the PID file.
func (lm *LifecycleManager) PIDFile() string {
	return lm.pidFile
}

// processAlive checks liveness with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
