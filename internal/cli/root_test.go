package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	root := GetRootCmd()

	assert.Equal(t, "vechnost", root.Use)
	assert.Equal(t, version, GetVersion())
}

func TestSubcommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range GetRootCmd().Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"start", "stop", "status"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "valid.pid")
		require.NoError(t, os.WriteFile(path, []byte("1234\n"), 0o644))

		pid, ok := readPID(path)
		assert.True(t, ok)
		assert.Equal(t, 1234, pid)
	})

	t.Run("missing file", func(t *testing.T) {
		_, ok := readPID(filepath.Join(dir, "nope.pid"))
		assert.False(t, ok)
	})

	t.Run("garbage", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.pid")
		require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

		_, ok := readPID(path)
		assert.False(t, ok)
	})
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
	assert.False(t, processAlive(999999))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m30s"},
		{3*time.Hour + 5*time.Minute + 7*time.Second, "3h5m7s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}
