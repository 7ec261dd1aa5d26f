package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("ERCASPAY_TIMEOUT", "")
	t.Setenv("TOPUP_MAX_KOBO", "")

	cfg, _ := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 15*time.Second, cfg.Ercaspay.Timeout)
	assert.Equal(t, int64(100_000_000), cfg.TopUp.MaxAmount)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("KAFKA_BROKER", "k1:9092,k2:9092")
	t.Setenv("ERCASPAY_TIMEOUT", "3s")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, _ := Load()
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.Ercaspay.Timeout)
	assert.Equal(t, 25, cfg.MaxOpenConns)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = Load()
	assert.Error(t, err, "missing .env is reported to the caller")

	t.Setenv("ERCASPAY_BASE_URL", "")
	os.Unsetenv("ERCASPAY_BASE_URL")
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ERCASPAY_BASE_URL=https://sandbox.ercaspay.test\n"), 0o600))

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, "https://sandbox.ercaspay.test", cfg.Ercaspay.BaseURL)
}
