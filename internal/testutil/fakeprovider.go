package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/backhaul-io/cloudstore/provider"
	"github.com/backhaul-io/cloudstore/storetypes"
)

// FakeProvider is an in-memory provider.Provider. It models a service whose
// multipart sessions carry no explicit handle: CreateMultipartUpload returns
// the zero handle, parts are staged per key, and completion materializes the
// object from the staged parts in part-number order.
//
// Error function fields inject failures per operation; a nil field means the
// operation succeeds. All methods are safe for concurrent use.
type FakeProvider struct {
	mu      sync.Mutex
	objects map[string][]byte
	staged  map[string]map[int32][]byte
	bucket  bool
	closed  bool

	// PageSize bounds each listing page. Zero means 1000.
	PageSize int

	// CustomLimits overrides the default limits when non-zero.
	CustomLimits storetypes.Limits

	HeadErr     error
	ListErr     error
	PutErr      func(key string) error
	GetErr      func(key string) error
	DeleteErr   func(key string) error
	PartErr     func(partNumber int32) error
	CompleteErr error
	AbortErr    error

	// AbortedKeys records keys whose multipart upload was aborted.
	AbortedKeys []string
}

// NewFakeProvider returns an empty fake whose bucket already exists.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		objects: make(map[string][]byte),
		staged:  make(map[string]map[int32][]byte),
		bucket:  true,
	}
}

// NewEmptyFakeProvider returns a fake whose bucket does not exist yet.
func NewEmptyFakeProvider() *FakeProvider {
	p := NewFakeProvider()
	p.bucket = false
	return p
}

// Factory returns a provider.Factory that always yields this fake.
func (p *FakeProvider) Factory() provider.Factory {
	return func(ctx context.Context, bucket string) (provider.Provider, error) {
		return p, nil
	}
}

// SetObject seeds an object directly into the store.
func (p *FakeProvider) SetObject(key string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[key] = append([]byte(nil), data...)
}

// Object returns the stored bytes for key and whether it exists.
func (p *FakeProvider) Object(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.objects[key]
	return data, ok
}

// StagedPartCount reports how many parts are staged for key.
func (p *FakeProvider) StagedPartCount(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.staged[key])
}

// HasBucket reports whether the bucket currently exists.
func (p *FakeProvider) HasBucket() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bucket
}

// Closed reports whether Close has been called.
func (p *FakeProvider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *FakeProvider) BucketExists(ctx context.Context) (bool, error) {
	if p.HeadErr != nil {
		return false, p.HeadErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bucket, nil
}

func (p *FakeProvider) CreateBucket(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bucket = true
	return nil
}

func (p *FakeProvider) ListPage(ctx context.Context, prefix, delimiter, token string) (*storetypes.ListPage, error) {
	if p.ListErr != nil {
		return nil, p.ListErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	matching := make([]string, 0, len(p.objects))
	for key := range p.objects {
		if strings.HasPrefix(key, prefix) {
			matching = append(matching, key)
		}
	}
	sort.Strings(matching)

	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	start := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil {
			return nil, fmt.Errorf("bad continuation token %q", token)
		}
		start = n
	}
	end := start + pageSize
	if end > len(matching) {
		end = len(matching)
	}

	page := &storetypes.ListPage{}
	seen := map[string]bool{}
	for _, key := range matching[start:end] {
		rest := key[len(prefix):]
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+len(delimiter)]
				if !seen[cp] {
					seen[cp] = true
					page.Prefixes = append(page.Prefixes, cp)
				}
				continue
			}
		}
		page.Keys = append(page.Keys, key)
	}
	if end < len(matching) {
		page.Truncated = true
		page.NextToken = strconv.Itoa(end)
	}
	return page, nil
}

func (p *FakeProvider) GetObjectStream(ctx context.Context, key string) (io.ReadCloser, error) {
	if p.GetErr != nil {
		if err := p.GetErr(key); err != nil {
			return nil, err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.objects[key]
	if !ok {
		return nil, nil
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (p *FakeProvider) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	if p.PutErr != nil {
		if err := p.PutErr(key); err != nil {
			return err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[key] = data
	return nil
}

func (p *FakeProvider) DeleteObject(ctx context.Context, key string) error {
	if p.DeleteErr != nil {
		if err := p.DeleteErr(key); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.objects, key)
	return nil
}

// CreateMultipartUpload returns the zero handle: this provider identifies
// sessions by key alone.
func (p *FakeProvider) CreateMultipartUpload(ctx context.Context, key string) (storetypes.UploadHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.staged[key] == nil {
		p.staged[key] = make(map[int32][]byte)
	}
	return "", nil
}

func (p *FakeProvider) UploadPart(
	ctx context.Context,
	handle storetypes.UploadHandle,
	key string,
	body io.Reader,
	partNumber int32,
) (storetypes.PartRecord, error) {
	if p.PartErr != nil {
		if err := p.PartErr(partNumber); err != nil {
			return storetypes.PartRecord{}, err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storetypes.PartRecord{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.staged[key] == nil {
		p.staged[key] = make(map[int32][]byte)
	}
	p.staged[key][partNumber] = data
	return storetypes.PartRecord{
		PartNumber: partNumber,
		Metadata:   map[string]string{"ETag": fmt.Sprintf("etag-%d", partNumber)},
	}, nil
}

func (p *FakeProvider) CompleteMultipartUpload(
	ctx context.Context,
	handle storetypes.UploadHandle,
	key string,
	parts []storetypes.PartRecord,
) error {
	if p.CompleteErr != nil {
		return p.CompleteErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	staged := p.staged[key]
	var buf bytes.Buffer
	for _, part := range parts {
		data, ok := staged[part.PartNumber]
		if !ok {
			return fmt.Errorf("part %d was never uploaded for %s", part.PartNumber, key)
		}
		buf.Write(data)
	}
	p.objects[key] = buf.Bytes()
	delete(p.staged, key)
	return nil
}

func (p *FakeProvider) AbortMultipartUpload(ctx context.Context, handle storetypes.UploadHandle, key string) error {
	if p.AbortErr != nil {
		return p.AbortErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.staged, key)
	p.AbortedKeys = append(p.AbortedKeys, key)
	return nil
}

func (p *FakeProvider) Limits() storetypes.Limits {
	if p.CustomLimits != (storetypes.Limits{}) {
		return p.CustomLimits
	}
	return storetypes.Limits{
		MinPartSize:   1,
		MaxPartSize:   1 << 30,
		MaxParts:      10000,
		MaxObjectSize: 1 << 40,
	}
}

func (p *FakeProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

var _ provider.Provider = (*FakeProvider)(nil)
