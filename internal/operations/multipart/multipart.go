// Package multipart orchestrates provider multipart sessions: explicit
// create/part/complete/abort pass-through with validation, and a streaming
// uploader that chunks a reader into concurrently transferred parts.
package multipart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/backhaul-io/cloudstore/errors"
	"github.com/backhaul-io/cloudstore/provider"
	"github.com/backhaul-io/cloudstore/storetypes"
)

// Uploader drives multipart sessions against a provider, enforcing that
// provider's limits.
type Uploader struct {
	provider provider.Provider
	partSize int64
	jobs     int
}

// New creates an Uploader. partSize is the target chunk size for streaming
// uploads, clamped to the provider's limits; jobs bounds concurrent part
// transfers and must be at least 1.
func New(p provider.Provider, partSize int64, jobs int) *Uploader {
	if jobs < 1 {
		jobs = 1
	}
	return &Uploader{
		provider: p,
		partSize: partSize,
		jobs:     jobs,
	}
}

// Create starts a multipart session for key. Some providers issue no
// explicit handle; the zero handle is valid and flows through the remaining
// calls unchanged.
func (u *Uploader) Create(ctx context.Context, key string) (storetypes.UploadHandle, error) {
	return u.provider.CreateMultipartUpload(ctx, key)
}

// UploadPart transfers one externally numbered part. The body is buffered to
// validate its size against the provider's part ceiling before any bytes
// leave the process.
func (u *Uploader) UploadPart(
	ctx context.Context,
	handle storetypes.UploadHandle,
	key string,
	partNumber int32,
	body io.Reader,
) (storetypes.PartRecord, error) {
	limits := u.provider.Limits()
	if partNumber < 1 {
		return storetypes.PartRecord{}, fmt.Errorf("part number %d: %w", partNumber, errors.ErrInvalidInput)
	}
	if limits.MaxParts > 0 && partNumber > limits.MaxParts {
		return storetypes.PartRecord{}, fmt.Errorf("part number %d exceeds limit %d: %w",
			partNumber, limits.MaxParts, errors.ErrTooManyParts)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return storetypes.PartRecord{}, fmt.Errorf("read part %d: %w", partNumber, err)
	}
	if limits.MaxPartSize > 0 && int64(len(data)) > limits.MaxPartSize {
		return storetypes.PartRecord{}, fmt.Errorf("part %d is %d bytes, limit %d: %w",
			partNumber, len(data), limits.MaxPartSize, errors.ErrPartTooLarge)
	}

	return u.provider.UploadPart(ctx, handle, key, bytes.NewReader(data), partNumber)
}

// Complete finalizes the session from parts. The records may arrive in any
// order; they are sorted by part number and must then form the unbroken
// sequence 1..N, or the completion is refused before reaching the provider.
func (u *Uploader) Complete(
	ctx context.Context,
	handle storetypes.UploadHandle,
	key string,
	parts []storetypes.PartRecord,
) error {
	if len(parts) == 0 {
		return fmt.Errorf("no parts to complete: %w", errors.ErrInvalidInput)
	}

	sorted := make([]storetypes.PartRecord, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PartNumber < sorted[j].PartNumber
	})
	for i, part := range sorted {
		want := int32(i + 1)
		if part.PartNumber != want {
			return fmt.Errorf("expected part %d, have part %d: %w", want, part.PartNumber, errors.ErrPartSequence)
		}
	}

	return u.provider.CompleteMultipartUpload(ctx, handle, key, sorted)
}

// Abort discards the session and any staged parts.
func (u *Uploader) Abort(ctx context.Context, handle storetypes.UploadHandle, key string) error {
	return u.provider.AbortMultipartUpload(ctx, handle, key)
}

// UploadStream chunks body into parts and uploads them with bounded
// concurrency, then completes the session. An empty stream still produces a
// valid empty object via a single zero-length part. On any part failure the
// uploader stops dispatching, drains in-flight parts, aborts the session and
// returns the first error observed.
func (u *Uploader) UploadStream(ctx context.Context, key string, body io.Reader) error {
	limits := u.provider.Limits()
	partSize := u.partSize
	if limits.MinPartSize > 0 && partSize < limits.MinPartSize {
		partSize = limits.MinPartSize
	}
	if limits.MaxPartSize > 0 && partSize > limits.MaxPartSize {
		partSize = limits.MaxPartSize
	}

	handle, err := u.provider.CreateMultipartUpload(ctx, key)
	if err != nil {
		return fmt.Errorf("create multipart upload: %w", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		records  []storetypes.PartRecord
	)
	sem := make(chan struct{}, u.jobs)

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}
	failed := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return firstErr != nil
	}

	var (
		partNumber int32
		total      int64
	)
	for {
		buf := make([]byte, partSize)
		n, rerr := io.ReadFull(body, buf)
		if rerr == io.EOF && partNumber > 0 {
			break // stream ended on a part boundary
		}
		if rerr != nil && rerr != io.EOF && rerr != io.ErrUnexpectedEOF {
			setErr(fmt.Errorf("read source stream: %w", rerr))
			break
		}

		partNumber++
		total += int64(n)
		if limits.MaxParts > 0 && partNumber > limits.MaxParts {
			setErr(fmt.Errorf("stream needs more than %d parts: %w", limits.MaxParts, errors.ErrTooManyParts))
			break
		}
		if limits.MaxObjectSize > 0 && total > limits.MaxObjectSize {
			setErr(fmt.Errorf("stream exceeds %d bytes: %w", limits.MaxObjectSize, errors.ErrObjectTooLarge))
			break
		}
		if failed() {
			break
		}

		chunk := buf[:n]
		wg.Add(1)
		sem <- struct{}{}
		go func(pn int32, data []byte) {
			defer wg.Done()
			defer func() { <-sem }()

			record, err := u.provider.UploadPart(ctx, handle, key, bytes.NewReader(data), pn)
			if err != nil {
				setErr(fmt.Errorf("upload part %d: %w", pn, err))
				return
			}
			mu.Lock()
			records = append(records, record)
			mu.Unlock()
		}(partNumber, chunk)

		if int64(n) < partSize {
			break // short read: this was the final part
		}
	}
	wg.Wait()

	if firstErr != nil {
		if abortErr := u.provider.AbortMultipartUpload(ctx, handle, key); abortErr != nil {
			return fmt.Errorf("%w (abort also failed: %v)", firstErr, abortErr)
		}
		return firstErr
	}
	return u.Complete(ctx, handle, key, records)
}
