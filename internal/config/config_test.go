package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "jokes.db", cfg.Database.Path)
	assert.Equal(t, DefaultUpstreamURL, cfg.Upstream.URL)
	assert.Zero(t, cfg.Upstream.Timeout)
	assert.True(t, cfg.Server.ExposeInternalErrors)
	assert.False(t, cfg.Jobs.Enabled)
	require.NotNil(t, cfg.Observability)
	assert.Equal(t, ServiceName, cfg.Observability.ServiceName)
	assert.Equal(t, "development", cfg.Observability.Environment)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("JOKES_PRIMARY__ENV", "production")
	t.Setenv("JOKES_SERVER__PORT", "9000")
	t.Setenv("JOKES_SERVER__EXPOSE_INTERNAL_ERRORS", "false")
	t.Setenv("JOKES_DATABASE__PATH", "/tmp/other.db")
	t.Setenv("JOKES_UPSTREAM__TIMEOUT", "15s")
	t.Setenv("JOKES_OBSERVABILITY__LOGGING__LEVEL", "warn")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.False(t, cfg.Server.ExposeInternalErrors)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, 15*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "warn", cfg.Observability.Logging.Level)
	// Untouched observability defaults survive a partial override.
	assert.Equal(t, "json", cfg.Observability.Logging.Format)
	assert.Equal(t, "production", cfg.Observability.Environment)
	assert.True(t, cfg.Observability.IsProduction())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "unknown driver",
			env:  map[string]string{"JOKES_DATABASE__DRIVER": "mysql"},
		},
		{
			name: "postgres without host",
			env: map[string]string{
				"JOKES_DATABASE__DRIVER": "postgres",
				"JOKES_DATABASE__USER":   "jokes",
				"JOKES_DATABASE__NAME":   "jokes",
			},
		},
		{
			name: "jobs without redis",
			env:  map[string]string{"JOKES_JOBS__ENABLED": "true"},
		},
		{
			name: "bad log level",
			env:  map[string]string{"JOKES_OBSERVABILITY__LOGGING__LEVEL": "verbose"},
		},
		{
			name: "bad upstream url",
			env:  map[string]string{"JOKES_UPSTREAM__URL": "not a url"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.read_timeout", envKey("JOKES_SERVER__READ_TIMEOUT"))
	assert.Equal(t, "observability.new_relic.license_key", envKey("JOKES_OBSERVABILITY__NEW_RELIC__LICENSE_KEY"))
}

func TestObservabilityConfig(t *testing.T) {
	cfg := DefaultObservabilityConfig()
	require.NoError(t, cfg.Validate())

	cfg.Logging.Level = ""
	assert.Equal(t, "debug", cfg.GetLogLevel())
	cfg.Environment = "production"
	assert.Equal(t, "info", cfg.GetLogLevel())

	cfg = DefaultObservabilityConfig()
	assert.True(t, cfg.HealthCheckEnabled("database"))
	assert.False(t, cfg.HealthCheckEnabled("kafka"))
	cfg.HealthChecks.Enabled = false
	assert.False(t, cfg.HealthCheckEnabled("database"))

	cfg = DefaultObservabilityConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}
