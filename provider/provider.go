// Package provider defines the capability set a concrete cloud object-storage
// SDK must satisfy to back the cloudstore adapter.
//
// Implementations are bound to a single container at construction time and
// must be safe for concurrent read-shared use; they should rely on the SDK's
// default credential chain rather than implementing custom auth.
package provider

import (
	"context"
	"io"

	"github.com/backhaul-io/cloudstore/storetypes"
)

// Provider abstracts one cloud object-storage backend bound to a container.
//
// Multipart semantics differ materially between providers: some require an
// explicit upload session (CreateMultipartUpload returns a non-empty handle),
// others stage nothing and treat the handle as a formality. Both satisfy the
// same contract; callers must pass the returned handle to every subsequent
// part operation and retire it exactly once via completion or abort.
type Provider interface {
	// BucketExists performs a single read-only existence check against the
	// bound container. Transport and API errors propagate unchanged; retries
	// are the caller's responsibility.
	BucketExists(ctx context.Context) (bool, error)

	// CreateBucket creates the bound container.
	CreateBucket(ctx context.Context) error

	// ListPage returns one page of keys and common prefixes under prefix,
	// grouped by delimiter. Pass the previous page's NextToken to continue.
	ListPage(ctx context.Context, prefix, delimiter, token string) (*storetypes.ListPage, error)

	// GetObjectStream returns a lazily-read stream over the object's bytes,
	// or (nil, nil) when the key does not exist. Existence is resolved by the
	// read call itself, not a separate metadata probe.
	GetObjectStream(ctx context.Context, key string) (io.ReadCloser, error)

	// PutObject writes the full content of body to key in one call,
	// overwriting any existing object.
	PutObject(ctx context.Context, key string, body io.Reader, contentType string) error

	// DeleteObject deletes a single object.
	DeleteObject(ctx context.Context, key string) error

	// CreateMultipartUpload starts a logical multipart upload for key. The
	// returned handle may be empty for providers with no explicit session.
	CreateMultipartUpload(ctx context.Context, key string) (storetypes.UploadHandle, error)

	// UploadPart transfers one part of the upload identified by handle.
	// Concurrent calls with distinct part numbers are permitted.
	UploadPart(ctx context.Context, handle storetypes.UploadHandle, key string, body io.Reader, partNumber int32) (storetypes.PartRecord, error)

	// CompleteMultipartUpload finalizes the object from the ordered parts
	// list. On providers that stage parts invisibly, this is the action that
	// makes the object visible to readers.
	CompleteMultipartUpload(ctx context.Context, handle storetypes.UploadHandle, key string, parts []storetypes.PartRecord) error

	// AbortMultipartUpload releases any partially-staged data for the upload.
	// Providers with no staging degrade to best-effort deletion of the key.
	AbortMultipartUpload(ctx context.Context, handle storetypes.UploadHandle, key string) error

	// Limits reports the provider's multipart size and count constraints.
	Limits() storetypes.Limits

	// Close releases any resources held by the provider.
	Close() error
}

// Factory builds a Provider bound to the given container. The adapter calls
// it at construction and again on every session re-initialization.
type Factory func(ctx context.Context, bucket string) (Provider, error)
