// Package app wires configuration into the concrete backends shared by the
// API server and the staging worker.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/config"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/logger"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/metrics"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/queue"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/repository/dynamo"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/repository/postgres"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/storage"
)

var log = logger.Named("app")

// Queue is a backend that both publishes and consumes.
type Queue interface {
	queue.Publisher
	queue.Consumer
}

// App holds the opened backends. Close releases them.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Redis   *redis.Client // nil when redis.url is empty
	Store   storage.Gateway
	Queue   Queue
	Imports *postgres.ImportRepo
	Schemas *schema.Registry
	Metrics *metrics.Recorder
}

// Open connects every backend selected by cfg.
func Open(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	a := &App{Config: cfg}
	var err error

	if a.DB, err = openDB(ctx, cfg.Database); err != nil {
		return nil, err
	}
	if cfg.Redis.URL != "" {
		if a.Redis, err = openRedis(ctx, cfg.Redis.URL); err != nil {
			a.Close()
			return nil, err
		}
	}
	if a.Store, err = newGateway(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if a.Queue, err = newQueue(ctx, cfg, a.Redis); err != nil {
		a.Close()
		return nil, err
	}
	repo, err := newSchemaRepo(ctx, cfg, a.DB)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.Metrics, err = metrics.New(reg); err != nil {
		a.Close()
		return nil, err
	}

	a.Imports = postgres.NewImportRepo(a.DB)
	a.Schemas = schema.NewRegistry(repo, cfg.Schemas.TenantClasses, cfg.Schemas.DefaultClass)

	log.Info("backends ready",
		"storage", cfg.Storage.Backend,
		"queue", cfg.Queue.Backend,
		"schemas", cfg.Schemas.Backend,
		"redis", a.Redis != nil)
	return a, nil
}

// Close releases connections. It is safe on a partially opened App.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Warn("close redis", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			log.Warn("close database", "error", err)
		}
	}
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("database.url (DATABASE_URL) is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func newGateway(ctx context.Context, cfg *config.Config) (storage.Gateway, error) {
	if cfg.Storage.Bucket == "" {
		return nil, errors.New("storage.bucket (S3_BUCKET) is required")
	}
	switch cfg.Storage.Backend {
	case "s3":
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		return storage.NewS3GatewayFromConfig(awsCfg, cfg.Storage), nil
	case "minio":
		return storage.NewMinioGatewayFromConfig(cfg.Minio, cfg.Storage)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func newQueue(ctx context.Context, cfg *config.Config, rdb *redis.Client) (Queue, error) {
	switch cfg.Queue.Backend {
	case "sqs":
		if cfg.Queue.SQSURL == "" {
			return nil, errors.New("queue.sqs_url (SQS_IMPORT_QUEUE_URL) is required for the sqs backend")
		}
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		return queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.Queue.SQSURL,
			cfg.Queue.WaitTimeSeconds, cfg.Queue.VisibilityTimeoutSeconds), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("queue backend redis needs redis.url (REDIS_URL)")
		}
		return queue.NewRedisQueue(rdb, cfg.Queue.RedisKey, time.Duration(cfg.Queue.WaitTimeSeconds)*time.Second,
			queue.WithRetry(cfg.Queue.MaxAttempts, cfg.Queue.RetryBackoff())), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

func newSchemaRepo(ctx context.Context, cfg *config.Config, db *sql.DB) (schema.Repository, error) {
	switch cfg.Schemas.Backend {
	case "postgres":
		return postgres.NewSchemaRepo(db), nil
	case "dynamodb":
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		return dynamo.NewSchemaRepo(dynamodb.NewFromConfig(awsCfg), cfg.Schemas.DynamoDBTable), nil
	default:
		return nil, fmt.Errorf("unknown schema backend %q", cfg.Schemas.Backend)
	}
}
