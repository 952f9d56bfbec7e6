package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the import server and worker
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Minio    MinioConfig    `yaml:"minio"`
	Queue    QueueConfig    `yaml:"queue"`
	Schemas  SchemasConfig  `yaml:"schemas"`
	Imports  ImportsConfig  `yaml:"imports"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RequireAdminRole rejects identities whose X-Admin-Role is not "admin".
	RequireAdminRole bool `yaml:"require_admin_role"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the Redis connection used by the list queue and locks.
// An empty URL disables Redis.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Backend             string `yaml:"backend"` // "s3" or "minio"
	Bucket              string `yaml:"bucket"`
	AWSRegion           string `yaml:"aws_region"`
	AWSProfile          string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	Endpoint            string `yaml:"endpoint"`    // custom S3 endpoint, e.g. localstack
	UploadURLTTLMinutes int    `yaml:"upload_url_ttl_minutes"`
}

// UploadURLTTL returns how long a signed upload URL stays valid
func (c StorageConfig) UploadURLTTL() time.Duration {
	return time.Duration(c.UploadURLTTLMinutes) * time.Minute
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// MinioConfig holds MinIO credentials, used when storage.backend is "minio"
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// QueueConfig selects the import queue backend
type QueueConfig struct {
	Backend         string `yaml:"backend"` // "sqs" or "redis"
	SQSURL          string `yaml:"sqs_url"`
	RedisKey        string `yaml:"redis_key"`
	WaitTimeSeconds int    `yaml:"wait_time_seconds"`
	// VisibilityTimeoutSeconds is how long a received SQS message stays
	// hidden before redelivery.
	VisibilityTimeoutSeconds int `yaml:"visibility_timeout_seconds"`
	// MaxAttempts and RetryBackoffSeconds bound redelivery on the redis
	// backend; SQS uses the queue's redrive policy.
	MaxAttempts         int `yaml:"max_attempts"`
	RetryBackoffSeconds int `yaml:"retry_backoff_seconds"`
}

// RetryBackoff returns the first redelivery delay
func (c QueueConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffSeconds) * time.Second
}

// SchemasConfig holds schema registry configuration
type SchemasConfig struct {
	Backend       string            `yaml:"backend"` // "postgres" or "dynamodb"
	DynamoDBTable string            `yaml:"dynamodb_table"`
	DefaultClass  string            `yaml:"default_class"`
	TenantClasses map[string]string `yaml:"tenant_classes"` // tenant id -> tenant class
}

// ImportsConfig holds analyze settings
type ImportsConfig struct {
	PreviewLimit int `yaml:"preview_limit"`
}

// WorkerConfig holds staging worker configuration
type WorkerConfig struct {
	Concurrency              int    `yaml:"concurrency"`
	ReconcileIntervalSeconds int    `yaml:"reconcile_interval_seconds"`
	StaleAfterMinutes        int    `yaml:"stale_after_minutes"`
	LockTTLSeconds           int    `yaml:"lock_ttl_seconds"`
	MetricsAddr              string `yaml:"metrics_addr"`
}

// ReconcileInterval returns the sweep interval as a duration
func (c WorkerConfig) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

// StaleAfter returns how long an import may sit in PROCESSING untouched
func (c WorkerConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMinutes) * time.Minute
}

// LockTTL returns the per-import lock lifetime
func (c WorkerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "s3"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Storage.UploadURLTTLMinutes == 0 {
		cfg.Storage.UploadURLTTLMinutes = 15
	}
	if cfg.Queue.Backend == "" {
		cfg.Queue.Backend = "sqs"
	}
	if cfg.Queue.RedisKey == "" {
		cfg.Queue.RedisKey = "imports:queue"
	}
	if cfg.Queue.WaitTimeSeconds == 0 {
		cfg.Queue.WaitTimeSeconds = 20
	}
	if cfg.Queue.VisibilityTimeoutSeconds == 0 {
		cfg.Queue.VisibilityTimeoutSeconds = 300
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 8
	}
	if cfg.Queue.RetryBackoffSeconds == 0 {
		cfg.Queue.RetryBackoffSeconds = 5
	}
	if cfg.Schemas.Backend == "" {
		cfg.Schemas.Backend = "postgres"
	}
	if cfg.Schemas.DefaultClass == "" {
		cfg.Schemas.DefaultClass = "default"
	}
	if cfg.Schemas.DynamoDBTable == "" {
		cfg.Schemas.DynamoDBTable = "import-schemas"
	}
	if cfg.Imports.PreviewLimit == 0 {
		cfg.Imports.PreviewLimit = 50
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 2
	}
	if cfg.Worker.ReconcileIntervalSeconds == 0 {
		cfg.Worker.ReconcileIntervalSeconds = 60
	}
	if cfg.Worker.StaleAfterMinutes == 0 {
		cfg.Worker.StaleAfterMinutes = 15
	}
	if cfg.Worker.LockTTLSeconds == 0 {
		cfg.Worker.LockTTLSeconds = 600
	}
	if cfg.Worker.MetricsAddr == "" {
		cfg.Worker.MetricsAddr = ":9091"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.Minio.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.Minio.SecretKey = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Minio.UseSSL = b
		}
	}
	if v := os.Getenv("QUEUE_BACKEND"); v != "" {
		cfg.Queue.Backend = v
	}
	if v := os.Getenv("SQS_IMPORT_QUEUE_URL"); v != "" {
		cfg.Queue.SQSURL = v
	}
	if v := os.Getenv("SCHEMA_BACKEND"); v != "" {
		cfg.Schemas.Backend = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}
