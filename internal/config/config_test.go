package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.APIURL)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, 10*time.Second, cfg.MutationTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "savoir", cfg.RedisNamespace)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SAVOIR_STORE", "redis")
	t.Setenv("SAVOIR_REDIS_ADDR", "cache:6380")
	t.Setenv("SAVOIR_REDIS_DB", "2")
	t.Setenv("SAVOIR_MUTATION_TIMEOUT", "3s")
	t.Setenv("SAVOIR_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 3*time.Second, cfg.MutationTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown store", key: "SAVOIR_STORE", value: "localstorage"},
		{name: "zero mutation timeout", key: "SAVOIR_MUTATION_TIMEOUT", value: "0s"},
		{name: "negative request timeout", key: "SAVOIR_REQUEST_TIMEOUT", value: "-1s"},
		{name: "unparseable duration", key: "SAVOIR_POLL_INTERVAL", value: "often"},
		{name: "unparseable db", key: "SAVOIR_REDIS_DB", value: "one"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate_SQLiteNeedsPath(t *testing.T) {
	cfg := Config{
		APIURL:          "http://api",
		Store:           StoreSQLite,
		RequestTimeout:  time.Second,
		MutationTimeout: time.Second,
		PollInterval:    time.Second,
	}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg.Store = StoreMemory
	assert.NoError(t, cfg.Validate())
}
