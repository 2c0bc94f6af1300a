package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultMaxAttempts bounds supervisor startup retries.
	DefaultMaxAttempts = 3
	// DefaultRetryDelay is the base delay between startup attempts.
	DefaultRetryDelay = 2 * time.Second
	// DefaultAttemptTimeout bounds a single attempt's readiness wait.
	DefaultAttemptTimeout = 30 * time.Second
	// DefaultStopTimeout bounds the graceful termination wait.
	DefaultStopTimeout = 10 * time.Second

	readinessPollInterval = time.Second
	probeTimeout          = 2 * time.Second
)

// SupervisorConfig configures the backend process supervisor.
type SupervisorConfig struct {
	Command        string   // backend binary, default "redis-server"
	Args           []string // extra arguments passed to the binary
	MaxAttempts    int
	RetryDelay     time.Duration // base delay between attempts
	MaxRetryDelay  time.Duration // backoff cap; 0 means fixed delay
	AttemptTimeout time.Duration
	StopTimeout    time.Duration
	Logger         zerolog.Logger
}

// Supervisor owns the lifecycle of an optional local backend process.
// Exhausting startup attempts is an expected outcome, not an error: the
// rest of the system proceeds into fallback mode, so Start reports a bool
// and Stop never fails.
type Supervisor struct {
	cfg    SupervisorConfig
	runner ProcessRunner
	pinger Pinger
	logger zerolog.Logger

	mu   sync.Mutex
	proc Process
}

// NewSupervisor creates a supervisor. The pinger is used as the liveness
// probe after each launch; it should point at the same endpoint the hybrid
// store will use.
func NewSupervisor(cfg SupervisorConfig, runner ProcessRunner, pinger Pinger) *Supervisor {
	if cfg.Command == "" {
		cfg.Command = "redis-server"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}

	return &Supervisor{
		cfg:    cfg,
		runner: runner,
		pinger: pinger,
		logger: cfg.Logger.With().Str("component", "supervisor").Logger(),
	}
}

// Start attempts to launch (or attach to) the backend, up to MaxAttempts
// times. It returns true only once a liveness probe succeeds. It never
// returns an error: exhausted attempts surface as false and a structured
// log event, and the health monitor reports Unavailable on its next cycle.
func (s *Supervisor) Start(ctx context.Context) bool {
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		s.logger.Info().
			Int("attempt", attempt).
			Int("max_attempts", s.cfg.MaxAttempts).
			Msg("Starting backend process")

		if s.startOnce(ctx) {
			s.logger.Info().Int("attempt", attempt).Msg("Backend is ready")
			return true
		}

		if attempt < s.cfg.MaxAttempts {
			delay := s.retryDelay(attempt)
			s.logger.Info().Dur("delay", delay).Msg("Backend start failed, retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				s.logger.Warn().Msg("Backend startup cancelled")
				return false
			}
		}
	}

	s.logger.Error().
		Int("attempts", s.cfg.MaxAttempts).
		Msg("Backend startup failed, continuing with fallback storage")
	return false
}

// retryDelay computes the capped-exponential delay before the next attempt.
// With MaxRetryDelay unset the delay is fixed.
func (s *Supervisor) retryDelay(attempt int) time.Duration {
	if s.cfg.MaxRetryDelay <= 0 {
		return s.cfg.RetryDelay
	}
	delay := s.cfg.RetryDelay << (attempt - 1)
	if delay > s.cfg.MaxRetryDelay || delay <= 0 {
		delay = s.cfg.MaxRetryDelay
	}
	return delay
}

// startOnce performs a single bounded startup attempt.
func (s *Supervisor) startOnce(ctx context.Context) bool {
	// An already-running backend (started externally or by a previous
	// attempt) counts as success without spawning a second process.
	if s.ping(ctx) {
		s.logger.Info().Msg("Attached to already-running backend")
		return true
	}

	proc, err := s.runner.Start(ctx, s.cfg.Command, s.cfg.Args...)
	if err != nil {
		s.logger.Warn().Err(err).Str("command", s.cfg.Command).Msg("Backend process launch failed")
		return false
	}

	s.mu.Lock()
	s.proc = proc
	s.mu.Unlock()

	s.logger.Info().Int("pid", proc.Pid()).Msg("Backend process started")

	if s.awaitReady(ctx) {
		return true
	}

	// A timed-out attempt counts as a failure; tear the process down so
	// the next attempt starts clean.
	s.logger.Warn().Msg("Backend readiness timeout")
	s.stopProcess()
	return false
}

// awaitReady polls the liveness probe until it succeeds or the attempt
// timeout elapses.
func (s *Supervisor) awaitReady(ctx context.Context) bool {
	readyCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	ticker := time.NewTicker(readinessPollInterval)
	defer ticker.Stop()

	for {
		if s.ping(readyCtx) {
			return true
		}
		select {
		case <-ticker.C:
		case <-readyCtx.Done():
			return false
		}
	}
}

func (s *Supervisor) ping(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return s.pinger.Ping(probeCtx) == nil
}

// Stop gracefully terminates the process the supervisor started. It is a
// no-op for externally managed backends and never fails.
func (s *Supervisor) Stop() {
	s.stopProcess()
}

func (s *Supervisor) stopProcess() {
	s.mu.Lock()
	proc := s.proc
	s.proc = nil
	s.mu.Unlock()

	if proc == nil || !proc.Alive() {
		return
	}

	s.logger.Info().Int("pid", proc.Pid()).Msg("Stopping backend process")

	if err := proc.Terminate(); err != nil {
		s.logger.Warn().Err(err).Msg("Graceful termination failed")
	}
	if err := proc.Wait(s.cfg.StopTimeout); err != nil {
		s.logger.Warn().Msg("Backend did not exit in time, killing")
		if err := proc.Kill(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to kill backend process")
		}
	} else {
		s.logger.Info().Msg("Backend process stopped")
	}
}

// IsRunning reports whether a supervisor-launched process is alive. It is
// a cheap check used for status reporting; it does not probe the backend.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil && s.proc.Alive()
}

// OwnsProcess reports whether the supervisor launched the backend itself,
// as opposed to attaching to an externally managed endpoint.
func (s *Supervisor) OwnsProcess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil
}
