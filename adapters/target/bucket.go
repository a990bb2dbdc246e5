package target

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	"imgnet/internal/events"
	"imgnet/internal/logging"
	"imgnet/internal/pipeline"
)

// ObjectStore is the slice of an S3-compatible API the bucket target needs.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

var errBucketNotReady = errors.New("bucket not initialized yet")

// Bucket is the "bucket" target: images are uploaded as they arrive under
// <prefix>/images/ and the export uploads <prefix>/images.csv.
type Bucket struct {
	bus    events.Bus
	store  ObjectStore
	bucket string
	prefix string
	logger *slog.Logger

	mu       sync.Mutex
	ready    bool
	uploaded int
}

// NewBucket returns a bucket target writing into bucket under prefix.
func NewBucket(bus events.Bus, store ObjectStore, bucket, prefix string) *Bucket {
	if bus == nil {
		bus = events.Discard{}
	}
	return &Bucket{
		bus:    bus,
		store:  store,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logging.New("target.bucket"),
	}
}

func (b *Bucket) Kind() string { return KindBucket }

// Init makes sure the bucket exists.
func (b *Bucket) Init(ctx context.Context) error {
	if b.bucket == "" {
		return b.fail("init", errors.New("bucket name is required"))
	}
	if err := b.store.EnsureBucket(ctx, b.bucket); err != nil {
		return b.fail("init", err)
	}
	b.mu.Lock()
	b.ready = true
	b.uploaded = 0
	b.mu.Unlock()
	return nil
}

// Add uploads the result's bytes. Results without bytes or filename are
// ignored.
func (b *Bucket) Add(ctx context.Context, res pipeline.NodeResult) error {
	if !res.HasArtifact() {
		return nil
	}
	if !b.isReady() {
		return b.fail("add", errBucketNotReady)
	}
	key := b.key(ImageFolder, res.Filename)
	if err := b.store.PutObject(ctx, b.bucket, key, res.Bytes, http.DetectContentType(res.Bytes)); err != nil {
		return b.fail("add", err)
	}
	b.mu.Lock()
	b.uploaded++
	b.mu.Unlock()
	return nil
}

// Export uploads the table next to the images.
func (b *Bucket) Export(ctx context.Context, src pipeline.RowSource) error {
	if !b.isReady() {
		return b.fail("export", errBucketNotReady)
	}
	data, rows, err := renderTable(src)
	if err != nil {
		return b.fail("export", err)
	}
	key := b.key(TableName)
	if err := b.store.PutObject(ctx, b.bucket, key, data, "text/csv"); err != nil {
		return b.fail("export", err)
	}

	b.mu.Lock()
	uploaded := b.uploaded
	b.mu.Unlock()
	loc := b.bucket + "/" + key
	b.logger.Info("table uploaded", "location", loc, "rows", rows, "images", uploaded)
	b.bus.Emit(events.ExportDone, pipeline.ExportEvent{Target: KindBucket, Location: loc, Rows: rows, Bytes: len(data)})
	return nil
}

// Clear forgets the initialized state. Uploaded objects stay in the bucket.
func (b *Bucket) Clear() {
	b.mu.Lock()
	b.ready = false
	b.uploaded = 0
	b.mu.Unlock()
}

func (b *Bucket) isReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

func (b *Bucket) key(parts ...string) string {
	return path.Join(append([]string{b.prefix}, parts...)...)
}

func (b *Bucket) fail(op string, err error) error {
	return &pipeline.ExportError{Target: KindBucket, Op: op, Err: err}
}
