package storage

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MemoryGateway keeps objects in memory and simulates signed URL expiry.
// It backs tests and local runs without an object store.
type MemoryGateway struct {
	mu      sync.Mutex
	bucket  string
	ttl     time.Duration
	objects map[string][]byte
	now     func() time.Time

	// SlotErr, when set, fails CreateUploadSlot.
	SlotErr error
	// DownloadErr, when set, fails Download for existing objects.
	DownloadErr error
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway(bucket string, ttl time.Duration) *MemoryGateway {
	return &MemoryGateway{
		bucket:  bucket,
		ttl:     ttl,
		objects: make(map[string][]byte),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for expiry checks.
func (g *MemoryGateway) SetClock(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// CreateUploadSlot returns a memory:// URL carrying its expiry.
func (g *MemoryGateway) CreateUploadSlot(_ context.Context, objectPath, contentType string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.SlotErr != nil {
		return "", g.SlotErr
	}
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(g.now().Add(g.ttl).Unix(), 10))
	q.Set("content-type", contentType)
	u := url.URL{Scheme: "memory", Host: g.bucket, Path: "/" + objectPath, RawQuery: q.Encode()}
	return u.String(), nil
}

// Upload plays the client side of a signed PUT. It fails with
// ErrSlotExpired once the URL's window has passed.
func (g *MemoryGateway) Upload(signedURL string, data []byte) error {
	u, err := url.Parse(signedURL)
	if err != nil || u.Scheme != "memory" {
		return fmt.Errorf("invalid upload url %q", signedURL)
	}
	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid upload url %q", signedURL)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.now().Unix() > expires {
		return ErrSlotExpired
	}
	g.objects[FormatURI(u.Host, u.Path)] = append([]byte(nil), data...)
	return nil
}

// Put stores data at objectPath directly.
func (g *MemoryGateway) Put(objectPath string, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[g.URI(objectPath)] = append([]byte(nil), data...)
}

// Download returns a copy of the object at uri.
func (g *MemoryGateway) Download(_ context.Context, uri string) ([]byte, error) {
	if _, err := keyIn(g.bucket, uri); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.objects[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, uri)
	}
	if g.DownloadErr != nil {
		return nil, g.DownloadErr
	}
	return append([]byte(nil), data...), nil
}

// URI returns s3://bucket/objectPath.
func (g *MemoryGateway) URI(objectPath string) string {
	return FormatURI(g.bucket, objectPath)
}
