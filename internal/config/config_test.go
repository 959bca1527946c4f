package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("FEISHU_APP_ID", "")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Workflow.CancelReasonMinLength)
	assert.Equal(t, 24*time.Hour, cfg.Workflow.IdempotencyTTL)
	assert.Equal(t, "scm", cfg.Metrics.Namespace)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Feishu.Enabled())
	assert.Equal(t, 10*time.Second, cfg.Feishu.Timeout)
}

func TestLoadFile_FeishuFromEnv(t *testing.T) {
	path := writeConfig(t, "feishu:\n  timeout: 3s\n")
	t.Setenv("FEISHU_APP_ID", "cli_test")
	t.Setenv("FEISHU_APP_SECRET", "secret")
	t.Setenv("FEISHU_STORE_CHAT_ID", "oc_store")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.True(t, cfg.Feishu.Enabled())
	assert.Equal(t, "oc_store", cfg.Feishu.StoreChatID)
	assert.Equal(t, 3*time.Second, cfg.Feishu.Timeout)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  path: /tmp/scm.db
workflow:
  cancel_reason_min_length: 10
  idempotency_ttl: 30m
`)
	t.Setenv("DB_PATH", "/var/lib/scm/scm.db")
	t.Setenv("REDIS_HOST", "redis.local")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/var/lib/scm/scm.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Workflow.CancelReasonMinLength)
	assert.Equal(t, 30*time.Minute, cfg.Workflow.IdempotencyTTL)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoadFile_RejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: oracle\n")

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("SCM_TEST_KEY", "set")
	assert.Equal(t, "set", GetEnvOrDefault("SCM_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("SCM_TEST_MISSING", "fallback"))
}
