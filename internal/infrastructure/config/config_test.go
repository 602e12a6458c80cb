package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test from an empty directory so no config.toml or .env
// in the package directory leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{
		"ERP_APP_ENV", "ERP_DATABASE_HOST", "ERP_DATABASE_PASSWORD", "ERP_DATABASE_SSLMODE",
		"ERP_DATABASE_MAX_OPEN_CONNS", "ERP_DATABASE_MAX_IDLE_CONNS", "ERP_PROCUREMENT_RECEIPT_MAX_RETRIES",
		"ERP_SCHEDULER_ENABLED", "ERP_SCHEDULER_OVERDUE_CRON_SCHEDULE", "ERP_TELEMETRY_SAMPLING_RATIO",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "po-fulfillment", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "fulfillment", cfg.Database.DBName)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 3, cfg.Procurement.ReceiptMaxRetries)
	assert.Equal(t, 24*time.Hour, cfg.Procurement.IdempotencyTTL)
	assert.Equal(t, "PO", cfg.Procurement.OrderNumberPrefix)
	assert.Equal(t, "0 * * * *", cfg.Scheduler.OverdueCronSchedule)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "po-fulfillment", cfg.Telemetry.ServiceName)
	assert.Contains(t, cfg.HTTP.CORSAllowHeaders, "Idempotency-Key")
	assert.Empty(t, cfg.HTTP.CORSAllowOrigins)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("ERP_DATABASE_HOST", "db.internal")
	t.Setenv("ERP_DATABASE_MAX_OPEN_CONNS", "40")
	t.Setenv("ERP_PROCUREMENT_RECEIPT_MAX_RETRIES", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 40, cfg.Database.MaxOpenConns)
	assert.Equal(t, 7, cfg.Procurement.ReceiptMaxRetries)
}

func TestLoad_TomlFile(t *testing.T) {
	dir := isolate(t)
	toml := `
[app]
name = "receiving"

[procurement]
idempotency_ttl = "2h"
order_number_prefix = "PUR"

[scheduler]
enabled = true
overdue_cron_schedule = "*/15 * * * *"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "receiving", cfg.App.Name)
	assert.Equal(t, 2*time.Hour, cfg.Procurement.IdempotencyTTL)
	assert.Equal(t, "PUR", cfg.Procurement.OrderNumberPrefix)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "*/15 * * * *", cfg.Scheduler.OverdueCronSchedule)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ERP_APP_PORT=9191\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ERP_APP_PORT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9191", cfg.App.Port)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"idle above open", func(c *Config) { c.Database.MaxIdleConns = 100 }, "cannot exceed"},
		{"negative retries", func(c *Config) { c.Procurement.ReceiptMaxRetries = -1 }, "receipt_max_retries"},
		{"bad cron", func(c *Config) {
			c.Scheduler.Enabled = true
			c.Scheduler.OverdueCronSchedule = "every hour"
		}, "overdue_cron_schedule"},
		{"sampling ratio out of range", func(c *Config) { c.Telemetry.SamplingRatio = 1.5 }, "sampling_ratio"},
		{"production needs password", func(c *Config) { c.App.Env = "production" }, "database.password"},
		{"production rejects wildcard cors", func(c *Config) {
			c.App.Env = "production"
			c.Database.Password = "secret"
			c.Database.SSLMode = "require"
			c.HTTP.CORSAllowOrigins = []string{"*"}
		}, "cors_allow_origins"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss/word", DBName: "fulfillment", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%2Fword@db:5432/fulfillment?sslmode=disable", d.DSN())
}
