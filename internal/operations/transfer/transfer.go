// Package transfer implements single-call object transfers: whole-stream
// upload with content-type detection and streaming download.
package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"github.com/backhaul-io/cloudstore/provider"
)

// sniffLen is how many leading bytes are peeked for content-type detection.
// Matches the largest prefix mimetype inspects.
const sniffLen = 3072

// Transferrer moves whole objects in single provider calls.
type Transferrer struct {
	provider provider.Provider
}

// New creates a Transferrer backed by p.
func New(p provider.Provider) *Transferrer {
	return &Transferrer{provider: p}
}

// Upload streams body to key in one call, overwriting any existing object.
// The content type is detected from the leading bytes of the stream; the
// peeked bytes are stitched back so the stored object is byte-identical to
// the input. Body is read exactly once and never fully buffered.
func (t *Transferrer) Upload(ctx context.Context, key string, body io.Reader) error {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("read upload stream: %w", err)
	}
	head = head[:n]

	contentType := mimetype.Detect(head).String()
	full := io.MultiReader(bytes.NewReader(head), body)

	return t.provider.PutObject(ctx, key, full, contentType)
}

// Open returns a streaming reader over the object at key, or (nil, nil) when
// no such object exists. The caller owns closing the reader.
func (t *Transferrer) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return t.provider.GetObjectStream(ctx, key)
}
