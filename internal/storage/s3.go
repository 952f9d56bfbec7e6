package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/config"
)

// S3API is the subset of the S3 client the gateway uses.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Presigner signs PUT requests.
type Presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Gateway stores uploads in an S3 bucket.
type S3Gateway struct {
	client    S3API
	presigner Presigner
	bucket    string
	ttl       time.Duration
}

// NewS3Gateway creates a gateway over an existing client.
func NewS3Gateway(client *s3.Client, bucket string, ttl time.Duration) *S3Gateway {
	return &S3Gateway{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		ttl:       ttl,
	}
}

// LoadAWSConfig loads the AWS SDK config for the configured region, using a
// shared profile when one is set and the default chain otherwise.
func LoadAWSConfig(ctx context.Context, cfg config.StorageConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if profile := cfg.GetAWSProfile(); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return awsCfg, nil
}

// NewS3GatewayFromConfig builds an S3 client from cfg. A custom endpoint
// switches to path-style addressing for S3-compatible local stacks.
func NewS3GatewayFromConfig(awsCfg aws.Config, cfg config.StorageConfig) *S3Gateway {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Gateway(client, cfg.Bucket, cfg.UploadURLTTL())
}

// CreateUploadSlot presigns a PUT for objectPath bound to contentType.
func (g *S3Gateway) CreateUploadSlot(ctx context.Context, objectPath, contentType string) (string, error) {
	req, err := g.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(objectPath),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(g.ttl))
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", objectPath, err)
	}
	return req.URL, nil
}

// Download reads the object at uri.
func (g *S3Gateway) Download(ctx context.Context, uri string) ([]byte, error) {
	key, err := keyIn(g.bucket, uri)
	if err != nil {
		return nil, err
	}
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, uri)
		}
		return nil, fmt.Errorf("get object %s: %w", uri, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", uri, err)
	}
	return data, nil
}

// URI returns s3://bucket/objectPath.
func (g *S3Gateway) URI(objectPath string) string {
	return FormatURI(g.bucket, objectPath)
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}
