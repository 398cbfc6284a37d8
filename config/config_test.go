package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"CONFIG_FILE", "APP_ENV", "SERVICE_NAME", "GRPC_PORT", "STORE_BACKEND", "STORE_BATCH_SIZE",
		"REDIS_ADDR", "DB_URL", "DYNAMO_REGION", "DYNAMO_TABLE", "DYNAMO_ENDPOINT", "PEBBLE_DIR",
		"NATS_URL", "OTEL_EXPORTER_OTLP_ENDPOINT", "AUTH_MODE", "JWT_PUBLIC_KEY_PATH",
		"FANOUT_TIMEOUT", "TOKEN_TTL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, defaults(), cfg)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "timeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store_backend: redis
redis_addr: cache:6379
fanout_timeout: 10s
grpc_port: "6000"
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("GRPC_PORT", " 7000 ")
	t.Setenv("TOKEN_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendRedis, cfg.StoreBackend)
	require.Equal(t, "cache:6379", cfg.RedisAddr)
	require.Equal(t, 10*time.Second, cfg.FanoutTimeout)
	require.Equal(t, "7000", cfg.GRPCPort)
	require.Equal(t, time.Hour, cfg.TokenTTL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	for name, env := range map[string][2]string{
		"backend":  {"STORE_BACKEND", "cassandra"},
		"auth":     {"AUTH_MODE", "magic"},
		"jwt":      {"AUTH_MODE", "jwt"},
		"duration": {"FANOUT_TIMEOUT", "soon"},
		"batch":    {"STORE_BATCH_SIZE", "many"},
	} {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(env[0], env[1])
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	require.Error(t, err)
}
