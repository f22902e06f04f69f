package config

import (
	"testing"
	"time"

	"github.com/kaytu-io/kaytu-assistant/pkg/koanf"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := koanf.Load("assistant_config_test", Default())
	require.NoError(t, err)
	require.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	require.Equal(t, 5*time.Second, cfg.Store.Timeout)
	require.Equal(t, "0.0.0.0:8000", cfg.Http.Address)
	require.Empty(t, cfg.NATS.URL)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("ASSISTANT_CONFIG_TEST_STORE__DRIVER", StoreDriverRedis)
	t.Setenv("ASSISTANT_CONFIG_TEST_STORE__TIMEOUT", "2s")
	t.Setenv("ASSISTANT_CONFIG_TEST_REDIS__ADDRESS", "redis:6379")
	t.Setenv("ASSISTANT_CONFIG_TEST_NATS__URL", "nats://nats:4222")

	cfg, err := koanf.Load("assistant_config_test", Default())
	require.NoError(t, err)
	require.Equal(t, StoreDriverRedis, cfg.Store.Driver)
	require.Equal(t, 2*time.Second, cfg.Store.Timeout)
	require.Equal(t, "redis:6379", cfg.Redis.Address)
	require.Equal(t, "nats://nats:4222", cfg.NATS.URL)
	require.Equal(t, "assistant", cfg.Redis.Prefix)
}
