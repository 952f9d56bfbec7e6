package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noSuchKey = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>missing.xlsx</Key><BucketName>uploads</BucketName></Error>`

func newMinioGateway(t *testing.T, handler http.HandlerFunc) *MinioGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("minio", "minio123", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return NewMinioGateway(client, "uploads", 15*time.Minute)
}

func TestMinioGateway_CreateUploadSlot(t *testing.T) {
	g := newMinioGateway(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("presign must not call the server: %s %s", r.Method, r.URL)
	})

	signed, err := g.CreateUploadSlot(context.Background(), "imports/acme/1/a.xlsx", "ignored")
	require.NoError(t, err)
	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/imports/acme/1/a.xlsx", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

func TestMinioGateway_Download(t *testing.T) {
	g := newMinioGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/uploads/imports/acme/1/a.xlsx":
			w.Header().Set("Content-Length", "7")
			w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
			w.Header().Set("ETag", `"abc"`)
			w.Write([]byte("payload"))
		default:
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(noSuchKey))
		}
	})
	ctx := context.Background()

	data, err := g.Download(ctx, "s3://uploads/imports/acme/1/a.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = g.Download(ctx, "s3://uploads/missing.xlsx")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = g.Download(ctx, "s3://other/a.xlsx")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
