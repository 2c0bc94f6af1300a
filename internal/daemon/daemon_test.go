package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechnost/vechnost/internal/config"
	"github.com/vechnost/vechnost/internal/logger"
)

// testConfig returns a config with all network-facing transports
// disabled so the daemon can run inside a test.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Telegram.Enabled = false
	cfg.Payments.Enabled = false
	cfg.Metrics.Enabled = false
	return cfg
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(logger.Config{Level: "error"})
	require.NoError(t, err)
	return log
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.RedisURL = "not-a-redis-url"

	_, err := New(cfg, testLogger(t))

	assert.Error(t, err)
}

func TestDaemon_StartStop(t *testing.T) {
	d, err := New(testConfig(t), testLogger(t))
	require.NoError(t, err)

	require.NoError(t, d.Start())
	assert.True(t, d.IsRunning())

	status := d.Status()
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.False(t, status.OwnsBackend)

	require.NoError(t, d.Stop())
	assert.False(t, d.IsRunning())
}

func TestDaemon_DoubleStartFails(t *testing.T) {
	d, err := New(testConfig(t), testLogger(t))
	require.NoError(t, err)

	require.NoError(t, d.Start())
	defer d.Stop()

	assert.Error(t, d.Start())
}

func TestDaemon_StopWithoutStartFails(t *testing.T) {
	d, err := New(testConfig(t), testLogger(t))
	require.NoError(t, err)

	assert.Error(t, d.Stop())
}

func TestDaemon_PIDFileLifecycle(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg, testLogger(t))
	require.NoError(t, err)

	pidFile := filepath.Join(cfg.DataDir, pidFileName)

	require.NoError(t, d.Start())
	_, statErr := os.Stat(pidFile)
	assert.NoError(t, statErr, "PID file should exist while running")

	require.NoError(t, d.Stop())
	_, statErr = os.Stat(pidFile)
	assert.True(t, os.IsNotExist(statErr), "PID file should be removed on stop")
}

func TestDaemon_SecondInstanceRefused(t *testing.T) {
	cfg := testConfig(t)

	first, err := New(cfg, testLogger(t))
	require.NoError(t, err)
	require.NoError(t, first.Start())
	defer first.Stop()

	second, err := New(cfg, testLogger(t))
	require.NoError(t, err)

	assert.Error(t, second.Start(), "PID file of a live process must block a second instance")
}

func TestDaemon_StatusBeforeStart(t *testing.T) {
	d, err := New(testConfig(t), testLogger(t))
	require.NoError(t, err)

	status := d.Status()

	assert.False(t, status.Running)
	assert.Zero(t, status.Uptime)
	assert.Equal(t, "unknown", status.StorageState)
}
