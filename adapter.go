package cloudstore

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/backhaul-io/cloudstore/errors"
	"github.com/backhaul-io/cloudstore/internal/operations/deletebatch"
	"github.com/backhaul-io/cloudstore/internal/operations/list"
	"github.com/backhaul-io/cloudstore/internal/operations/multipart"
	"github.com/backhaul-io/cloudstore/internal/operations/transfer"
	"github.com/backhaul-io/cloudstore/provider"
	"github.com/backhaul-io/cloudstore/provider/s3"
	"github.com/backhaul-io/cloudstore/storetypes"
)

// session bundles the live provider with everything derived from it. A
// session is immutable once built; Initialize replaces the whole value
// instead of mutating fields, so readers always observe a consistent set.
type session struct {
	provider  provider.Provider
	lister    *list.Lister
	transfers *transfer.Transferrer
	uploads   *multipart.Uploader
	deleter   *deletebatch.Deleter

	// bucketExists caches the last successful connectivity probe.
	// nil means never probed.
	bucketExists *bool
}

// Adapter is the storage backend for backup archives at one bucket/prefix
// location. Operations are safe for concurrent use; Initialize and Close are
// not, and must be externally synchronized against in-flight operations.
type Adapter struct {
	locator storetypes.Locator
	cfg     *config
	logger  *zap.Logger
	metrics *metrics

	sess   *session
	closed bool
}

// New builds an Adapter for the location named by rawURL and opens the
// initial provider session. The default provider is S3 configured from the
// environment; WithProviderFactory substitutes any other backend.
func New(ctx context.Context, rawURL string, opts ...Option) (*Adapter, error) {
	locator, err := ParseLocator(rawURL)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.factory == nil {
		cfg.factory = s3.Factory()
	}

	a := &Adapter{
		locator: locator,
		cfg:     cfg,
		logger:  cfg.logger.With(zap.String("bucket", locator.Bucket)),
		metrics: newMetrics(cfg.registerer),
	}
	if err := a.Initialize(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Locator returns the resolved bucket and prefix this adapter serves.
func (a *Adapter) Locator() storetypes.Locator {
	return a.locator
}

// Initialize builds a fresh provider session, replacing the current one and
// discarding its cached connectivity state. Call it after a fork or whenever
// stored credentials change.
func (a *Adapter) Initialize(ctx context.Context) error {
	if a.closed {
		return errors.NewError("Initialize", errors.ErrSessionClosed).WithBucket(a.locator.Bucket)
	}

	p, err := a.cfg.factory(ctx, a.locator.Bucket)
	if err != nil {
		return errors.NewError("Initialize", err).WithBucket(a.locator.Bucket)
	}

	old := a.sess
	a.sess = &session{
		provider:  p,
		lister:    list.New(p),
		transfers: transfer.New(p),
		uploads:   multipart.New(p, a.cfg.partSize, a.cfg.jobs),
		deleter:   deletebatch.New(p),
	}
	if old != nil {
		if err := old.provider.Close(); err != nil {
			a.logger.Warn("closing previous session", zap.Error(err))
		}
	}
	return nil
}

func (a *Adapter) session() (*session, error) {
	if a.closed {
		return nil, errors.ErrSessionClosed
	}
	return a.sess, nil
}

// TestConnectivity probes the service and reports whether it answered. The
// bucket's existence does not matter here, only that the existence check
// itself completed: a reachable service with a missing bucket is still
// connected, and SetupBucket can create it. Provider failures are logged,
// never returned. The existence result is cached for SetupBucket.
func (a *Adapter) TestConnectivity(ctx context.Context) bool {
	sess, err := a.session()
	if err != nil {
		a.logger.Error("connectivity test on closed adapter")
		return false
	}

	exists, err := sess.provider.BucketExists(ctx)
	if err != nil {
		a.logger.Error("bucket connectivity test failed", zap.Error(err))
		return false
	}
	sess.bucketExists = &exists
	return true
}

// SetupBucket ensures the bucket exists, creating it when absent. The cached
// probe result short-circuits the existence check.
func (a *Adapter) SetupBucket(ctx context.Context) error {
	const op = "SetupBucket"
	sess, err := a.session()
	if err != nil {
		return errors.NewError(op, err).WithBucket(a.locator.Bucket)
	}

	if sess.bucketExists == nil {
		exists, err := sess.provider.BucketExists(ctx)
		if err != nil {
			return errors.NewError(op, err).WithBucket(a.locator.Bucket)
		}
		sess.bucketExists = &exists
	}
	if *sess.bucketExists {
		return nil
	}

	a.logger.Info("creating bucket")
	if err := sess.provider.CreateBucket(ctx); err != nil {
		return errors.NewError(op, err).WithBucket(a.locator.Bucket)
	}
	exists := true
	sess.bucketExists = &exists
	return nil
}

// ListObjects returns every object key under prefix plus the synthetic
// directories the delimiter induces, with pagination fully drained. An
// empty delimiter falls back to the adapter's configured one; pass
// WithDelimiter("") at construction for flat recursive listings.
func (a *Adapter) ListObjects(ctx context.Context, prefix, delimiter string) (*storetypes.ListingResult, error) {
	sess, err := a.session()
	if err != nil {
		return nil, errors.NewError("ListObjects", err).WithBucket(a.locator.Bucket)
	}
	if delimiter == "" {
		delimiter = a.cfg.delimiter
	}
	result, err := sess.lister.List(ctx, prefix, delimiter)
	if err != nil {
		return nil, errors.NewError("ListObjects", err).WithBucket(a.locator.Bucket)
	}
	return result, nil
}

// ListBucket flattens ListObjects into a single slice: object keys first,
// then the synthetic directory prefixes. The delimiter defaults like
// ListObjects.
func (a *Adapter) ListBucket(ctx context.Context, prefix, delimiter string) ([]string, error) {
	result, err := a.ListObjects(ctx, prefix, delimiter)
	if err != nil {
		return nil, err
	}
	flat := make([]string, 0, len(result.Objects)+len(result.Prefixes))
	flat = append(flat, result.Objects...)
	flat = append(flat, result.Prefixes...)
	return flat, nil
}

// UploadFileobj streams r to key in a single call, overwriting any existing
// object.
func (a *Adapter) UploadFileobj(ctx context.Context, r io.Reader, key string) error {
	sess, err := a.session()
	if err != nil {
		return errors.NewObjectError("UploadFileobj", a.locator.Bucket, key, err)
	}

	counted := &countingReader{r: r}
	start := time.Now()
	if err := sess.transfers.Upload(ctx, key, counted); err != nil {
		return errors.NewObjectError("UploadFileobj", a.locator.Bucket, key, err)
	}
	a.metrics.observeUpload(counted.n, time.Since(start).Seconds())
	a.logger.Debug("uploaded object",
		zap.String("key", key),
		zap.Int64("bytes", counted.n))
	return nil
}

// RemoteOpen returns a streaming reader over the object at key, or
// (nil, nil) when the object does not exist. The caller closes the reader.
func (a *Adapter) RemoteOpen(ctx context.Context, key string) (io.ReadCloser, error) {
	sess, err := a.session()
	if err != nil {
		return nil, errors.NewObjectError("RemoteOpen", a.locator.Bucket, key, err)
	}
	rc, err := sess.transfers.Open(ctx, key)
	if err != nil {
		return nil, errors.NewObjectError("RemoteOpen", a.locator.Bucket, key, err)
	}
	return rc, nil
}

// CreateMultipartUpload starts an externally driven multipart session for
// key. Providers without explicit sessions return the zero handle, which is
// valid for the remaining calls.
func (a *Adapter) CreateMultipartUpload(ctx context.Context, key string) (storetypes.UploadHandle, error) {
	sess, err := a.session()
	if err != nil {
		return "", errors.NewObjectError("CreateMultipartUpload", a.locator.Bucket, key, err)
	}
	handle, err := sess.uploads.Create(ctx, key)
	if err != nil {
		return "", errors.NewObjectError("CreateMultipartUpload", a.locator.Bucket, key, err)
	}
	return handle, nil
}

// UploadPart transfers one part of an externally driven multipart session.
// Part numbers start at 1 and are validated against the provider's limits.
func (a *Adapter) UploadPart(
	ctx context.Context,
	handle storetypes.UploadHandle,
	key string,
	r io.Reader,
	partNumber int32,
) (storetypes.PartRecord, error) {
	sess, err := a.session()
	if err != nil {
		return storetypes.PartRecord{}, errors.NewObjectError("UploadPart", a.locator.Bucket, key, err)
	}
	record, err := sess.uploads.UploadPart(ctx, handle, key, partNumber, r)
	if err != nil {
		return storetypes.PartRecord{}, errors.NewObjectError("UploadPart", a.locator.Bucket, key, err)
	}
	return record, nil
}

// CompleteMultipartUpload finalizes the object from parts, which may be
// given in any order but must form the unbroken sequence 1..N.
func (a *Adapter) CompleteMultipartUpload(
	ctx context.Context,
	handle storetypes.UploadHandle,
	key string,
	parts []storetypes.PartRecord,
) error {
	sess, err := a.session()
	if err != nil {
		return errors.NewObjectError("CompleteMultipartUpload", a.locator.Bucket, key, err)
	}
	if err := sess.uploads.Complete(ctx, handle, key, parts); err != nil {
		return errors.NewObjectError("CompleteMultipartUpload", a.locator.Bucket, key, err)
	}
	return nil
}

// AbortMultipartUpload discards the session and its staged parts.
func (a *Adapter) AbortMultipartUpload(ctx context.Context, handle storetypes.UploadHandle, key string) error {
	sess, err := a.session()
	if err != nil {
		return errors.NewObjectError("AbortMultipartUpload", a.locator.Bucket, key, err)
	}
	if err := sess.uploads.Abort(ctx, handle, key); err != nil {
		return errors.NewObjectError("AbortMultipartUpload", a.locator.Bucket, key, err)
	}
	return nil
}

// UploadStream uploads r as one object via a multipart session, chunking it
// into parts transferred concurrently. On failure nothing materializes at
// key and the session is aborted.
func (a *Adapter) UploadStream(ctx context.Context, r io.Reader, key string) error {
	sess, err := a.session()
	if err != nil {
		return errors.NewObjectError("UploadStream", a.locator.Bucket, key, err)
	}

	counted := &countingReader{r: r}
	start := time.Now()
	if err := sess.uploads.UploadStream(ctx, key, counted); err != nil {
		return errors.NewObjectError("UploadStream", a.locator.Bucket, key, err)
	}
	a.metrics.observeUpload(counted.n, time.Since(start).Seconds())
	a.logger.Debug("uploaded object via multipart",
		zap.String("key", key),
		zap.Int64("bytes", counted.n))
	return nil
}

// DeleteObjects removes every key in keys, deduplicated, each attempted
// independently. A non-nil error is a *errors.DeleteBatchError naming every
// key that failed; keys absent from it were deleted.
func (a *Adapter) DeleteObjects(ctx context.Context, keys []string) error {
	sess, err := a.session()
	if err != nil {
		return errors.NewError("DeleteObjects", err).WithBucket(a.locator.Bucket)
	}

	err = sess.deleter.Delete(ctx, keys)
	if batchErr, ok := err.(*errors.DeleteBatchError); ok {
		failed := len(batchErr.Failures)
		a.metrics.observeDeletes(len(keys)-failed, failed)
		a.logger.Warn("bulk delete completed with failures",
			zap.Int("failed", failed),
			zap.Strings("keys", batchErr.FailedKeys()))
		return batchErr
	}
	if err != nil {
		return errors.NewError("DeleteObjects", err).WithBucket(a.locator.Bucket)
	}
	a.metrics.observeDeletes(len(keys), 0)
	return nil
}

// Close releases the provider session. Further operations fail with
// ErrSessionClosed; Close is idempotent.
func (a *Adapter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if a.sess != nil {
		return a.sess.provider.Close()
	}
	return nil
}

// countingReader tracks bytes read for metrics.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
