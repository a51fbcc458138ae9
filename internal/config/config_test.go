package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 5s
rules:
  path: rules.yaml
  watch: true
logging:
  level: debug
  format: console
metrics:
  enabled: true
`

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, "rules.yaml", cfg.Rules.Path)
	assert.True(t, cfg.Rules.Watch)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvServerPort, "7070")
	t.Setenv(EnvRulesPath, "/etc/rules.yaml")
	t.Setenv(EnvRulesWatch, "yes")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvMetricsEnable, "1")
	t.Setenv(EnvWriteTimeout, "not-a-duration")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/etc/rules.yaml", cfg.Rules.Path)
	assert.True(t, cfg.Rules.Watch)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("RULES_DIR", "/srv")

	cfg, err := Parse([]byte("rules: {path: ${RULES_DIR}/rules.yaml}"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/rules.yaml", cfg.Rules.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"missing rules", "server: {port: 80}", "rules.path is required"},
		{"bad port", "rules: {path: r.yaml}\nserver: {port: 70000}", "server.port"},
		{"bad level", "rules: {path: r.yaml}\nlogging: {level: loud}", "logging.level"},
		{"bad format", "rules: {path: r.yaml}\nlogging: {format: xml}", "logging.format"},
		{"bad metrics path", "rules: {path: r.yaml}\nmetrics: {path: metrics}", "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Setenv(EnvRulesPath, "env.yaml")

	cfg, err := LoadWithFallback("")
	require.NoError(t, err)
	assert.Equal(t, "env.yaml", cfg.Rules.Path)

	_, err = LoadWithFallback(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info().Msg("hidden")
	logger.Warn().Str("k", "v").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}
