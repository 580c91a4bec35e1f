package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/docsync")
	t.Setenv("WEBHOOK_TOKEN", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("S3_ACCESS_KEY_ID", "key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	t.Setenv("DOWNLOAD_TOKEN_SECRET", "dl-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr = %s", cfg.Addr())
	}
	if cfg.Upload.MaxFileSize != 50<<20 {
		t.Errorf("max file size = %d, want 50MB", cfg.Upload.MaxFileSize)
	}
	if cfg.Workers.SweepLookback != 240*time.Hour {
		t.Errorf("sweep lookback = %s, want 240h", cfg.Workers.SweepLookback)
	}
	if cfg.Workers.BatchSize != 5 || cfg.Workers.IndexingBatch != 20 || cfg.Workers.SweepBatchSize != 15 {
		t.Errorf("batch sizes = %d/%d/%d", cfg.Workers.BatchSize, cfg.Workers.IndexingBatch, cfg.Workers.SweepBatchSize)
	}
	if cfg.Webhook.Header != "X-Webhook-Token" {
		t.Errorf("webhook header = %s", cfg.Webhook.Header)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("WORKER_UPLOAD_INTERVAL", "90s")
	t.Setenv("UPLOAD_MAX_FILE_SIZE", "1048576")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Workers.UploadInterval != 90*time.Second {
		t.Errorf("upload interval = %s", cfg.Workers.UploadInterval)
	}
	if cfg.Upload.MaxFileSize != 1<<20 {
		t.Errorf("max file size = %d", cfg.Upload.MaxFileSize)
	}
}

func TestValidateReportsAllMissing(t *testing.T) {
	for _, name := range []string{
		"DATABASE_URL", "WEBHOOK_TOKEN", "OPENAI_API_KEY",
		"S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "DOWNLOAD_TOKEN_SECRET",
	} {
		t.Setenv(name, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure with empty environment")
	}
	for _, name := range []string{"DATABASE_URL", "WEBHOOK_TOKEN", "OPENAI_API_KEY", "DOWNLOAD_TOKEN_SECRET"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q should name %s", err, name)
		}
	}
}

func TestLoadRejectsMalformedInt(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "not-a-port")
	if _, err := Load(); err == nil {
		t.Error("malformed SERVER_PORT must fail loading")
	}
}
