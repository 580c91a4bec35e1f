package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Index     IndexConfig
	Converter ConverterConfig
	Webhook   WebhookConfig
	Auth      AuthConfig
	Upload    UploadConfig
	Workers   WorkersConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint  string // S3-compatible endpoint, empty for AWS proper
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string // default bucket for direct uploads
}

type IndexConfig struct {
	OpenAIKey string
	Timeout   time.Duration
}

type ConverterConfig struct {
	ParseURL string // remote spreadsheet parsing service, empty disables it
	ParseKey string
}

type WebhookConfig struct {
	Token  string
	Header string
}

type AuthConfig struct {
	DownloadSecret string // signs short-lived download links
	DownloadTTL    time.Duration
}

type UploadConfig struct {
	MaxFileSize int64
	ScratchDir  string // empty means os.TempDir
}

type WorkersConfig struct {
	UploadInterval   time.Duration
	IndexingInterval time.Duration
	DeleteInterval   time.Duration
	SweepCron        string
	BatchSize        int
	IndexingBatch    int
	SweepLookback    time.Duration
	SweepBatchSize   int
	SweepRatePerSec  float64
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxFileSize, err := getEnvInt64("UPLOAD_MAX_FILE_SIZE", 50<<20)
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_MAX_FILE_SIZE: %w", err)
	}

	batchSize, err := getEnvInt("WORKER_BATCH_SIZE", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_BATCH_SIZE: %w", err)
	}

	indexingBatch, err := getEnvInt("WORKER_INDEXING_BATCH_SIZE", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_INDEXING_BATCH_SIZE: %w", err)
	}

	sweepBatch, err := getEnvInt("SWEEP_BATCH_SIZE", 15)
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_BATCH_SIZE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Storage: StorageConfig{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			Region:    getEnv("S3_REGION", "ru-central1"),
			AccessKey: getEnv("S3_ACCESS_KEY_ID", ""),
			SecretKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", "documents"),
		},
		Index: IndexConfig{
			OpenAIKey: getEnv("OPENAI_API_KEY", ""),
			Timeout:   getEnvDuration("INDEX_TIMEOUT", 70*time.Second),
		},
		Converter: ConverterConfig{
			ParseURL: getEnv("CONVERTER_PARSE_URL", ""),
			ParseKey: getEnv("CONVERTER_PARSE_KEY", ""),
		},
		Webhook: WebhookConfig{
			Token:  getEnv("WEBHOOK_TOKEN", ""),
			Header: getEnv("WEBHOOK_TOKEN_HEADER", "X-Webhook-Token"),
		},
		Auth: AuthConfig{
			DownloadSecret: getEnv("DOWNLOAD_TOKEN_SECRET", ""),
			DownloadTTL:    getEnvDuration("DOWNLOAD_TOKEN_TTL", 15*time.Minute),
		},
		Upload: UploadConfig{
			MaxFileSize: maxFileSize,
			ScratchDir:  getEnv("UPLOAD_SCRATCH_DIR", ""),
		},
		Workers: WorkersConfig{
			UploadInterval:   getEnvDuration("WORKER_UPLOAD_INTERVAL", 3*time.Minute),
			IndexingInterval: getEnvDuration("WORKER_INDEXING_INTERVAL", 5*time.Minute),
			DeleteInterval:   getEnvDuration("WORKER_DELETE_INTERVAL", 3*time.Minute),
			SweepCron:        getEnv("SWEEP_CRON", "0 2 * * 0"),
			BatchSize:        batchSize,
			IndexingBatch:    indexingBatch,
			SweepLookback:    getEnvDuration("SWEEP_LOOKBACK", 240*time.Hour),
			SweepBatchSize:   sweepBatch,
			SweepRatePerSec:  0.34, // one batch roughly every 3 seconds
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Webhook.Token == "" {
		missing = append(missing, "WEBHOOK_TOKEN")
	}
	if c.Index.OpenAIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Storage.AccessKey == "" {
		missing = append(missing, "S3_ACCESS_KEY_ID")
	}
	if c.Storage.SecretKey == "" {
		missing = append(missing, "S3_SECRET_ACCESS_KEY")
	}
	if c.Auth.DownloadSecret == "" {
		missing = append(missing, "DOWNLOAD_TOKEN_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
