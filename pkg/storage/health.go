package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vechnost/vechnost/internal/observability"
)

const (
	// DefaultProbeInterval is the default health probe period.
	DefaultProbeInterval = 5 * time.Second
	// DefaultFailureThreshold is the number of consecutive probe failures
	// before the backend is declared unavailable.
	DefaultFailureThreshold = 3
	// DefaultProbeTimeout bounds a single probe round-trip.
	DefaultProbeTimeout = 2 * time.Second
)

// MonitorConfig configures the health monitor.
type MonitorConfig struct {
	Interval         time.Duration
	ProbeTimeout     time.Duration
	FailureThreshold int
	Logger           zerolog.Logger
}

// Monitor probes the backend on a fixed interval and publishes a debounced
// availability signal. The debounce is asymmetric on purpose: Unavailable
// requires FailureThreshold consecutive failures, while a single successful
// probe flips the signal back to Available. Slow failure, fast recovery.
type Monitor struct {
	cfg    MonitorConfig
	pinger Pinger
	holder *SignalHolder
	onDown func()

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	logger  zerolog.Logger
}

// NewMonitor creates a health monitor. onDown, if non-nil, is invoked once
// per Available-to-Unavailable transition; the daemon uses it to trigger a
// supervisor restart when the managed process died.
func NewMonitor(cfg MonitorConfig, pinger Pinger, holder *SignalHolder, onDown func()) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultProbeInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}

	return &Monitor{
		cfg:    cfg,
		pinger: pinger,
		holder: holder,
		onDown: onDown,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		logger: cfg.Logger.With().Str("component", "health_monitor").Logger(),
	}
}

// Start launches the probe loop. The loop runs until Stop is called; there
// is no terminal state.
func (m *Monitor) Start() error {
	if m.running {
		return fmt.Errorf("health monitor is already running")
	}

	m.running = true
	go m.run()

	m.logger.Info().
		Dur("interval", m.cfg.Interval).
		Int("failure_threshold", m.cfg.FailureThreshold).
		Msg("Health monitor started")

	return nil
}

// Stop terminates the probe loop and waits for it to drain.
func (m *Monitor) Stop() error {
	if !m.running {
		return fmt.Errorf("health monitor is not running")
	}

	close(m.stopCh)
	<-m.doneCh
	m.running = false

	m.logger.Info().Msg("Health monitor stopped")

	return nil
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	// Probe immediately so the signal leaves Unknown as soon as possible.
	m.probe()

	for {
		select {
		case <-ticker.C:
			m.probe()
		case <-m.stopCh:
			return
		}
	}
}

// probe performs a single bounded round-trip and updates the signal. The
// monitor is the sole writer of the holder, so the read-modify-write here
// needs no locking.
func (m *Monitor) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ProbeTimeout)
	err := m.pinger.Ping(ctx)
	cancel()

	cur := m.holder.Current()

	if err == nil {
		observability.RecordProbe(true)
		if cur.State != StateAvailable {
			m.transition(cur, StateAvailable, 0)
		} else if cur.Failures != 0 {
			m.holder.publish(Signal{State: cur.State, Since: cur.Since, Failures: 0})
		}
		return
	}

	observability.RecordProbe(false)
	failures := cur.Failures + 1
	m.logger.Debug().
		Err(err).
		Int("consecutive_failures", failures).
		Msg("Health probe failed")

	if cur.State != StateUnavailable && failures >= m.cfg.FailureThreshold {
		wasAvailable := cur.State == StateAvailable
		m.transition(cur, StateUnavailable, failures)
		if wasAvailable && m.onDown != nil {
			// Run the recovery hook off the probe loop so a slow restart
			// attempt cannot delay subsequent probes.
			go m.onDown()
		}
		return
	}

	m.holder.publish(Signal{State: cur.State, Since: cur.Since, Failures: failures})
}

func (m *Monitor) transition(from Signal, to State, failures int) {
	m.holder.publish(Signal{State: to, Since: time.Now(), Failures: failures})
	observability.SetBackendAvailable(to == StateAvailable)

	evt := m.logger.Info()
	if to == StateUnavailable {
		evt = m.logger.Warn()
	}
	evt.
		Str("from", from.State.String()).
		Str("to", to.String()).
		Int("consecutive_failures", failures).
		Msg("Backend availability changed")
}
