package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8080
  mode: test
database:
  host: localhost
  port: 5432
  user: medrx
  password: secret
  db_name: medrx
redis:
  addr: "localhost:6379"
kafka:
  brokers: ["localhost:9092"]
  group_id: medrx-workers
minio:
  endpoint: "localhost:9000"
  access_key: key
  secret_key: secret
  bucket: prescription-scans
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(t, err)
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "test", cfg.Server.Mode)
	assert.Equal(t, "medrx", cfg.Database.User)
}

func TestLoad_FromFile_FileNotFound(t *testing.T) {
	_, err := Load("non_existent_config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_FromFile_InvalidYAML(t *testing.T) {
	path := createTempConfigFile(t, "invalid_yaml: [")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_FromFile_ValidationFailure(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML+"\nextractor:\n  min_quality_score: -5\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoad_AppliesDefaults(t *testing.T) {
	// Only the fields without defaults are supplied; everything else must be
	// filled by ApplyDefaults before validation runs.
	minimalYAML := `
database:
  user: medrx
  password: secret
`
	path := createTempConfigFile(t, minimalYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultMinIOBucket, cfg.MinIO.Bucket)
	assert.Equal(t, DefaultExtractorMinQuality, cfg.Extractor.MinQualityScore)
	assert.Equal(t, DefaultReminderCheckInterval, cfg.Reminder.CheckInterval)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	t.Setenv("MEDRX_SERVER_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoad_EnvOverride_NestedKey(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	t.Setenv("MEDRX_DATABASE_HOST", "db-host")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db-host", cfg.Database.Host)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	t.Setenv("MEDRX_DATABASE_USER", "medrx")
	t.Setenv("MEDRX_DATABASE_PASSWORD", "secret")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "medrx", cfg.Database.User)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
}

func TestMustLoad_Success(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)
	assert.NotPanics(t, func() {
		MustLoad(path)
	})
}

func TestMustLoad_Panic(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad("non_existent.yaml")
	})
}
