package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisBackend_ValidURL(t *testing.T) {
	b, err := NewRedisBackend("redis://localhost:6379/0")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.NoError(t, b.Close())
}

func TestNewRedisBackend_MalformedURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"garbage", "not a url"},
		{"wrong scheme", "http://localhost:6379"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewRedisBackend(tt.url)
			assert.Error(t, err)
			assert.Nil(t, b)
		})
	}
}
