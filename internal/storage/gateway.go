// Package storage issues signed upload URLs and downloads uploaded
// spreadsheets from object storage.
//
// Gateways are thin wrappers over the object store client. They never retry:
// a failed or expired upload means the import restarts from a fresh slot.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrObjectNotFound is returned for malformed URIs, URIs outside the
// gateway's bucket and absent objects.
var ErrObjectNotFound = errors.New("object not found")

// ErrSlotExpired is returned when bytes are sent to an upload URL after its
// validity window.
var ErrSlotExpired = errors.New("upload url expired")

// Gateway is the object storage boundary used by the import pipeline.
type Gateway interface {
	// CreateUploadSlot returns a URL the client PUTs the file to directly.
	CreateUploadSlot(ctx context.Context, objectPath, contentType string) (string, error)
	// Download returns the full object content.
	Download(ctx context.Context, uri string) ([]byte, error)
	// URI returns the storage URI recorded for objectPath.
	URI(objectPath string) string
}

const scheme = "s3://"

// ObjectPath builds the object key for an uploaded file:
// imports/<tenant>/<import id>/<filename>. Directory parts of filename are
// dropped.
func ObjectPath(tenantID, importID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	return path.Join("imports", tenantID, importID, name)
}

// FormatURI returns s3://bucket/key.
func FormatURI(bucket, key string) string {
	return scheme + bucket + "/" + strings.TrimPrefix(key, "/")
}

// ParseURI splits s3://bucket/key. Malformed URIs yield ErrObjectNotFound.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: unsupported uri %q", ErrObjectNotFound, uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: malformed uri %q", ErrObjectNotFound, uri)
	}
	return bucket, key, nil
}

// keyIn parses uri and checks it belongs to bucket.
func keyIn(bucket, uri string) (string, error) {
	b, key, err := ParseURI(uri)
	if err != nil {
		return "", err
	}
	if b != bucket {
		return "", fmt.Errorf("%w: bucket %q is not served by this gateway", ErrObjectNotFound, b)
	}
	return key, nil
}
