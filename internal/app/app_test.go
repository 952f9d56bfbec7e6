package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/config"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/queue"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/repository/postgres"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/storage"
)

func TestNewQueue(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Queue: config.QueueConfig{Backend: "redis", RedisKey: "q", WaitTimeSeconds: 1}}

	_, err := newQueue(ctx, cfg, nil)
	assert.ErrorContains(t, err, "REDIS_URL")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	q, err := newQueue(ctx, cfg, rdb)
	require.NoError(t, err)
	assert.IsType(t, &queue.RedisQueue{}, q)

	cfg.Queue.Backend = "sqs"
	_, err = newQueue(ctx, cfg, nil)
	assert.ErrorContains(t, err, "SQS_IMPORT_QUEUE_URL")

	cfg.Queue.Backend = "kafka"
	_, err = newQueue(ctx, cfg, nil)
	assert.ErrorContains(t, err, "unknown queue backend")
}

func TestNewGateway(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{Storage: config.StorageConfig{Backend: "minio", UploadURLTTLMinutes: 15}}

	_, err := newGateway(ctx, cfg)
	assert.ErrorContains(t, err, "S3_BUCKET")

	cfg.Storage.Bucket = "uploads"
	cfg.Minio = config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"}
	g, err := newGateway(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.MinioGateway{}, g)

	cfg.Storage.Backend = "gcs"
	_, err = newGateway(ctx, cfg)
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestNewSchemaRepo(t *testing.T) {
	repo, err := newSchemaRepo(context.Background(), &config.Config{Schemas: config.SchemasConfig{Backend: "postgres"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &postgres.SchemaRepo{}, repo)

	_, err = newSchemaRepo(context.Background(), &config.Config{Schemas: config.SchemasConfig{Backend: "mongo"}}, nil)
	assert.Error(t, err)
}

func TestOpen_RequiresDatabaseURL(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{}, nil)
	assert.ErrorContains(t, err, "DATABASE_URL")
}
