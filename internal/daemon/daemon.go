// Package daemon wires the configuration, storage core, repositories
// and transports into one long-running process.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vechnost/vechnost/internal/config"
	"github.com/vechnost/vechnost/internal/logger"
	"github.com/vechnost/vechnost/internal/observability"
	"github.com/vechnost/vechnost/internal/telegram"
	"github.com/vechnost/vechnost/pkg/game"
	"github.com/vechnost/vechnost/pkg/i18n"
	"github.com/vechnost/vechnost/pkg/payments"
	"github.com/vechnost/vechnost/pkg/ratelimit"
	"github.com/vechnost/vechnost/pkg/session"
	"github.com/vechnost/vechnost/pkg/storage"
	"github.com/vechnost/vechnost/pkg/subscription"
)

// Daemon represents the Vechnost daemon service
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	// Storage core
	backend    *storage.RedisBackend
	signal     *storage.SignalHolder
	supervisor *storage.Supervisor
	monitor    *storage.Monitor
	store      *storage.HybridStore

	// Repositories and services
	sessions      *session.Repository
	subscriptions *subscription.Service
	catalog       *game.Catalog
	watcher       *game.Watcher
	translator    *i18n.Translator
	limiter       *ratelimit.Limiter

	// Transports
	bot           *telegram.Bot
	paymentLedger *payments.Ledger
	paymentServer *payments.Server
	metricsServer *http.Server

	scheduler *cron.Cron
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// Status describes the daemon's runtime state.
type Status struct {
	Running      bool
	PID          int
	Uptime       time.Duration
	StorageState string
	OwnsBackend  bool
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	observability.EnsureRegistered()

	d := &Daemon{
		config: cfg,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := d.initStorage(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := d.initServices(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

// initStorage builds the hybrid storage core.
func (d *Daemon) initStorage() error {
	backend, err := storage.NewRedisBackend(d.config.Storage.RedisURL)
	if err != nil {
		return err
	}
	d.backend = backend
	d.signal = storage.NewSignalHolder()

	zl := d.logger.GetZerolog()

	if d.config.Storage.AutoStart {
		d.supervisor = storage.NewSupervisor(storage.SupervisorConfig{
			Command:       d.config.Storage.StartCommand,
			Args:          d.config.Storage.StartArgs,
			MaxAttempts:   d.config.Storage.MaxStartAttempts,
			RetryDelay:    time.Duration(d.config.Storage.StartRetryDelaySeconds) * time.Second,
			MaxRetryDelay: time.Duration(d.config.Storage.MaxStartRetryDelaySeconds) * time.Second,
			Logger:        zl,
		}, storage.ExecRunner{}, backend)
	}

	d.monitor = storage.NewMonitor(storage.MonitorConfig{
		Interval:         time.Duration(d.config.Storage.HealthCheckIntervalSecs) * time.Second,
		FailureThreshold: d.config.Storage.FailureThreshold,
		Logger:           zl,
	}, backend, d.signal, d.onBackendDown)

	d.store = storage.NewHybridStore(backend, d.signal, storage.HybridConfig{Logger: zl})
	d.sessions = session.NewRepository(d.store, d.config.Storage.SessionTTL(), zl)
	d.subscriptions = subscription.NewService(d.store, zl)

	d.logger.Info().Msg("Storage core initialized")
	return nil
}

// onBackendDown relaunches the supervised process after it died. A
// remote backend going away is not ours to fix.
func (d *Daemon) onBackendDown() {
	if d.supervisor == nil || !d.supervisor.OwnsProcess() || d.supervisor.IsRunning() {
		return
	}
	d.logger.Warn().Msg("Supervised backend died, attempting restart")
	d.supervisor.Start(d.ctx)
}

// initServices builds the user-facing services.
func (d *Daemon) initServices() error {
	zl := d.logger.GetZerolog()

	d.limiter = ratelimit.NewLimiter(map[string]ratelimit.Limit{
		"message":  {Requests: d.config.RateLimit.MessagesPerMinute, Window: time.Minute},
		"callback": {Requests: d.config.RateLimit.CallbacksPerMinute, Window: time.Minute},
	}, ratelimit.Limit{})

	if d.config.Telegram.Enabled {
		catalog, err := game.LoadCatalog(d.config.Game.ContentPath, zl)
		if err != nil {
			return err
		}
		d.catalog = catalog

		watcher, err := game.NewWatcher(catalog)
		if err != nil {
			d.logger.Warn().Err(err).Msg("Content hot reload unavailable")
		} else {
			d.watcher = watcher
		}

		translator, err := i18n.Load(d.config.Game.TranslationsDir, zl)
		if err != nil {
			return err
		}
		d.translator = translator

		bot, err := telegram.New(d.config.Telegram.BotToken, zl)
		if err != nil {
			return err
		}
		bot.SetHandler(telegram.NewGameHandler(
			bot, d.sessions, d.subscriptions, catalog, translator, d.limiter, zl,
		))
		d.bot = bot
	}

	if d.config.Payments.Enabled {
		ledger, err := payments.OpenLedger(d.config.Payments.LedgerPath)
		if err != nil {
			return err
		}
		d.paymentLedger = ledger

		server, err := payments.NewServer(payments.ServerOptions{
			Host:   d.config.Payments.Host,
			Port:   d.config.Payments.Port,
			Path:   d.config.Payments.Path,
			Secret: d.config.Payments.Secret,
		}, ledger, d.subscriptions, zl)
		if err != nil {
			return err
		}
		d.paymentServer = server
	}

	d.scheduler = cron.New()
	return nil
}

// Start brings the daemon up.
func (d *Daemon) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("daemon is already running")
	}

	d.logger.Info().Msg("Starting daemon")

	if err := d.lifecycle.Start(); err != nil {
		return err
	}

	auditPath := d.config.DataDir + "/audit.log"
	if err := observability.InitAuditLogger(auditPath); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to initialize audit logger, using default stderr")
	}

	// The supervisor may fail all its attempts; the daemon still comes
	// up and serves from the fallback path.
	if d.supervisor != nil {
		if ok := d.supervisor.Start(d.ctx); !ok {
			d.logger.Warn().Msg("Backend did not start, continuing with fallback storage")
		}
	}

	if err := d.monitor.Start(); err != nil {
		return err
	}

	if err := d.scheduleJobs(); err != nil {
		return err
	}
	d.scheduler.Start()

	if d.bot != nil {
		if err := d.bot.Start(); err != nil {
			return err
		}
	}

	if d.paymentServer != nil {
		go func() {
			if err := d.paymentServer.Start(); err != nil {
				d.logger.Error().Err(err).Msg("Payment webhook server failed")
			}
		}()
	}

	if d.config.Metrics.Enabled {
		d.startMetricsServer()
	}

	d.startTime = time.Now()
	d.running = true

	d.logger.Info().Msg("Daemon started")
	return nil
}

// scheduleJobs registers the periodic maintenance work.
func (d *Daemon) scheduleJobs() error {
	if _, err := d.scheduler.AddFunc("@every 1m", func() {
		d.store.Sweep()
		d.limiter.Prune(10 * time.Minute)
	}); err != nil {
		return fmt.Errorf("failed to schedule storage sweep: %w", err)
	}

	if _, err := d.scheduler.AddFunc("@daily", func() {
		expired := d.subscriptions.ExpireLapsed(d.ctx, d.subscriptions.SeenUsers())
		if expired > 0 {
			d.logger.Info().Int("expired", expired).Msg("Downgraded lapsed subscriptions")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule subscription scan: %w", err)
	}

	return nil
}

func (d *Daemon) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())

	d.metricsServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.config.Metrics.Host, d.config.Metrics.Port),
		Handler: mux,
	}

	go func() {
		d.logger.Info().Str("addr", d.metricsServer.Addr).Msg("Metrics endpoint listening")
		if err := d.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

// Run starts the daemon and blocks until SIGINT or SIGTERM.
func (d *Daemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	d.logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	return d.Stop()
}

// Stop shuts everything down in reverse dependency order: transports
// first, then the monitor, then the supervised backend.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return fmt.Errorf("daemon is not running")
	}

	d.logger.Info().Msg("Stopping daemon")

	if d.bot != nil && d.bot.IsRunning() {
		if err := d.bot.Stop(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to stop Telegram bot")
		}
	}

	if d.paymentServer != nil {
		if err := d.paymentServer.Stop(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to stop payment webhook server")
		}
	}

	if d.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = d.metricsServer.Shutdown(ctx)
		cancel()
	}

	d.scheduler.Stop()

	if err := d.monitor.Stop(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to stop health monitor")
	}

	if d.supervisor != nil {
		d.supervisor.Stop()
	}

	if d.watcher != nil {
		_ = d.watcher.Close()
	}
	if d.paymentLedger != nil {
		_ = d.paymentLedger.Close()
	}
	_ = d.backend.Close()

	d.cancel()

	if err := d.lifecycle.Stop(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to clean up lifecycle state")
	}

	d.running = false

	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// Status reports the daemon's runtime state.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:      d.running,
		PID:          os.Getpid(),
		StorageState: d.store.Signal().State.String(),
	}
	if d.running {
		status.Uptime = time.Since(d.startTime)
	}
	if d.supervisor != nil {
		status.OwnsBackend = d.supervisor.OwnsProcess()
	}
	return status
}

// IsRunning reports whether the daemon is started.
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}
