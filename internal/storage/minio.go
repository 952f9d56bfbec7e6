package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/config"
)

// MinioGateway stores uploads in a MinIO (or other S3-compatible) bucket.
type MinioGateway struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// NewMinioGateway creates a gateway over an existing client.
func NewMinioGateway(client *minio.Client, bucket string, ttl time.Duration) *MinioGateway {
	return &MinioGateway{client: client, bucket: bucket, ttl: ttl}
}

// NewMinioGatewayFromConfig connects with static credentials.
func NewMinioGatewayFromConfig(mc config.MinioConfig, sc config.StorageConfig) (*MinioGateway, error) {
	client, err := minio.New(mc.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(mc.AccessKey, mc.SecretKey, ""),
		Secure: mc.UseSSL,
		Region: sc.AWSRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return NewMinioGateway(client, sc.Bucket, sc.UploadURLTTL()), nil
}

// CreateUploadSlot presigns a PUT for objectPath. MinIO presigned PUTs do
// not bind the content type.
func (g *MinioGateway) CreateUploadSlot(ctx context.Context, objectPath, _ string) (string, error) {
	u, err := g.client.PresignedPutObject(ctx, g.bucket, objectPath, g.ttl)
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", objectPath, err)
	}
	return u.String(), nil
}

// Download reads the object at uri.
func (g *MinioGateway) Download(ctx context.Context, uri string) ([]byte, error) {
	key, err := keyIn(g.bucket, uri)
	if err != nil {
		return nil, err
	}
	obj, err := g.client.GetObject(ctx, g.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, g.wrap(uri, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, g.wrap(uri, err)
	}
	return data, nil
}

// URI returns s3://bucket/objectPath.
func (g *MinioGateway) URI(objectPath string) string {
	return FormatURI(g.bucket, objectPath)
}

func (g *MinioGateway) wrap(uri string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrObjectNotFound, uri)
	}
	return fmt.Errorf("get object %s: %w", uri, err)
}
