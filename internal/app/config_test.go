package app

import (
	"testing"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) Config {
	t.Helper()
	var cfg Config
	require.NoError(t, envconfig.Process("", &cfg))
	return cfg
}

func TestConfigDefaultsValidate(t *testing.T) {
	cfg := defaultConfig(t)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, 10, cfg.RecordsPerPage)
	assert.Equal(t, "local", cfg.StorageProvider)
	assert.NoError(t, cfg.Validate())

	tol, err := cfg.Tolerance()
	require.NoError(t, err)
	assert.Equal(t, "1", tol.String())
}

func TestConfigProductionRejectsDevelopmentSecrets(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.AppEnv = "production"
	assert.ErrorContains(t, cfg.Validate(), "SESSION_SECRET")

	cfg.SessionSecret = "prod-session"
	assert.ErrorContains(t, cfg.Validate(), "CSRF_SECRET")

	cfg.CSRFSecret = "prod-csrf"
	assert.ErrorContains(t, cfg.Validate(), "PG_DSN")

	cfg.PGDSN = "postgres://prod/mxstorebi"
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsProduction())
}

func TestConfigStorageProvider(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.StorageProvider = "gcs"
	assert.ErrorContains(t, cfg.Validate(), "GCS_BUCKET")
	cfg.GCSBucket = "receipts"
	assert.NoError(t, cfg.Validate())

	cfg.StorageProvider = "s3"
	assert.Error(t, cfg.Validate())
}

func TestConfigRejectsNegativeTolerance(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.ReconcileTolerance = "-1"
	assert.Error(t, cfg.Validate())
}
