package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sampleConfig struct {
	Addr     string        `split_words:"true" default:":3000"`
	MaxRound int           `split_words:"true" default:"8"`
	Timeout  time.Duration `split_words:"true" default:"15s"`
}

func TestNewReadsEnvFileWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("SAMPLE_ADDR=:9999\nSAMPLE_MAX_ROUND=3\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("SAMPLE_MAX_ROUND", "5")
	t.Setenv("SAMPLE_ADDR", "")
	os.Unsetenv("SAMPLE_ADDR")

	SetEnvFile(path)
	t.Cleanup(func() { SetEnvFile("") })

	conf, err := New[sampleConfig]("SAMPLE")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if conf.Addr != ":9999" {
		t.Fatalf("Addr = %q, want :9999", conf.Addr)
	}
	if conf.MaxRound != 5 {
		t.Fatalf("MaxRound = %d, want 5 (environment wins)", conf.MaxRound)
	}
	if conf.Timeout != 15*time.Second {
		t.Fatalf("Timeout = %v, want default", conf.Timeout)
	}
}

func TestNewMissingExplicitFile(t *testing.T) {
	SetEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	t.Cleanup(func() { SetEnvFile("") })

	if _, err := New[sampleConfig]("SAMPLE"); err == nil {
		t.Fatal("expected error for missing env file")
	}
}
