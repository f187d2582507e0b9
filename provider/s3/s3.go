// Package s3 implements the provider capability set on top of Amazon S3 and
// S3-compatible services using the AWS SDK v2.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/backhaul-io/cloudstore/internal/awsapi"
	"github.com/backhaul-io/cloudstore/provider"
	"github.com/backhaul-io/cloudstore/storetypes"
)

// S3 multipart constraints. Parts below the floor (except the last) are
// rejected at completion time by the service itself.
const (
	minPartSize   = 5 * 1024 * 1024
	maxPartSize   = 5 * 1024 * 1024 * 1024
	maxParts      = 10000
	maxObjectSize = 5 * 1024 * 1024 * 1024 * 1024
)

// Provider is an S3-backed implementation of provider.Provider, bound to one
// bucket for its lifetime.
type Provider struct {
	client awsapi.S3API
	bucket string
}

// Config holds construction options for the S3 provider.
type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	MaxRetries      int
	Timeout         time.Duration
}

// Option is a functional option for configuring the S3 provider.
type Option func(*Config)

// WithRegion sets the AWS region. Defaults to the credential chain's region.
func WithRegion(region string) Option {
	return func(c *Config) {
		c.Region = region
	}
}

// WithEndpoint sets a custom endpoint URL and enables path-style addressing.
// This is required for most S3-compatible services (MinIO, LocalStack).
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// WithStaticCredentials sets explicit credentials instead of the default
// credential chain.
func WithStaticCredentials(accessKeyID, secretAccessKey string) Option {
	return func(c *Config) {
		c.AccessKeyID = accessKeyID
		c.SecretAccessKey = secretAccessKey
	}
}

// WithMaxRetries sets the maximum number of SDK retry attempts.
func WithMaxRetries(maxRetries int) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// New creates an S3 provider bound to bucket, loading AWS configuration from
// the default credential chain unless overridden by options.
func New(ctx context.Context, bucket string, opts ...Option) (*Provider, error) {
	providerCfg := &Config{}
	for _, opt := range opts {
		opt(providerCfg)
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if providerCfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(providerCfg.Region))
	}
	if providerCfg.AccessKeyID != "" && providerCfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(
			providerCfg.AccessKeyID,
			providerCfg.SecretAccessKey,
			"", // session token
		)
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if providerCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = providerCfg.MaxRetries
	}

	var s3Opts []func(*s3.Options)
	if providerCfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(providerCfg.Endpoint)
			o.UsePathStyle = true // required by most S3-compatible services
		})
	}
	if providerCfg.Timeout > 0 {
		httpClient := &http.Client{Timeout: providerCfg.Timeout}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return &Provider{
		client: s3.NewFromConfig(cfg, s3Opts...),
		bucket: bucket,
	}, nil
}

// NewWithClient creates an S3 provider with a custom API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(client awsapi.S3API, bucket string) *Provider {
	return &Provider{
		client: client,
		bucket: bucket,
	}
}

// Factory returns a provider.Factory that builds S3 providers with opts.
func Factory(opts ...Option) provider.Factory {
	return func(ctx context.Context, bucket string) (provider.Provider, error) {
		return New(ctx, bucket, opts...)
	}
}

// BucketExists checks the bound bucket with a HEAD request. A missing bucket
// is (false, nil); any other failure propagates unchanged so callers can
// distinguish "absent" from "unreachable".
func (p *Provider) BucketExists(ctx context.Context) (bool, error) {
	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(p.bucket),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) || strings.Contains(err.Error(), "NotFound") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateBucket creates the bound bucket.
func (p *Provider) CreateBucket(ctx context.Context) error {
	_, err := p.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(p.bucket),
	})
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// ListPage fetches one page of keys and common prefixes.
func (p *Provider) ListPage(ctx context.Context, prefix, delimiter, token string) (*storetypes.ListPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(prefix),
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	output, err := p.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}

	page := &storetypes.ListPage{
		Keys:      make([]string, 0, len(output.Contents)),
		Prefixes:  make([]string, 0, len(output.CommonPrefixes)),
		Truncated: aws.ToBool(output.IsTruncated),
	}
	for _, obj := range output.Contents {
		page.Keys = append(page.Keys, aws.ToString(obj.Key))
	}
	for _, cp := range output.CommonPrefixes {
		page.Prefixes = append(page.Prefixes, aws.ToString(cp.Prefix))
	}
	if output.NextContinuationToken != nil {
		page.NextToken = aws.ToString(output.NextContinuationToken)
	}
	return page, nil
}

// GetObjectStream opens a streaming read over the object, or returns
// (nil, nil) when the key does not exist. Existence is resolved by the read
// call itself; no separate HEAD round-trip.
func (p *Provider) GetObjectStream(ctx context.Context, key string) (io.ReadCloser, error) {
	output, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return output.Body, nil
}

// PutObject writes body to key in a single call, overwriting any existing
// object at that key.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := p.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// DeleteObject deletes a single object. Deleting a missing key is not an
// error on S3.
func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// CreateMultipartUpload starts an explicit multipart session and returns its
// upload ID as the handle.
func (p *Provider) CreateMultipartUpload(ctx context.Context, key string) (storetypes.UploadHandle, error) {
	output, err := p.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("create multipart upload: %w", err)
	}
	return storetypes.UploadHandle(aws.ToString(output.UploadId)), nil
}

// UploadPart transfers one part and returns its record with the ETag the
// service assigned, for verbatim pass-through to completion.
func (p *Provider) UploadPart(
	ctx context.Context,
	handle storetypes.UploadHandle,
	key string,
	body io.Reader,
	partNumber int32,
) (storetypes.PartRecord, error) {
	output, err := p.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(p.bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(string(handle)),
		PartNumber: aws.Int32(partNumber),
		Body:       body,
	})
	if err != nil {
		return storetypes.PartRecord{}, fmt.Errorf("upload part %d: %w", partNumber, err)
	}
	return storetypes.PartRecord{
		PartNumber: partNumber,
		Metadata: map[string]string{
			"ETag": aws.ToString(output.ETag),
		},
	}, nil
}

// CompleteMultipartUpload finalizes the object from the ordered parts list.
// Parts are staged invisibly on S3 until this call succeeds.
func (p *Provider) CompleteMultipartUpload(
	ctx context.Context,
	handle storetypes.UploadHandle,
	key string,
	parts []storetypes.PartRecord,
) error {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, part := range parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(part.PartNumber),
			ETag:       aws.String(part.Metadata["ETag"]),
		})
	}

	_, err := p.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(p.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(string(handle)),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return fmt.Errorf("complete multipart upload: %w", err)
	}
	return nil
}

// AbortMultipartUpload releases all staged parts of the upload.
func (p *Provider) AbortMultipartUpload(ctx context.Context, handle storetypes.UploadHandle, key string) error {
	_, err := p.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(p.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(string(handle)),
	})
	if err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	return nil
}

// Limits reports S3's multipart constraints.
func (p *Provider) Limits() storetypes.Limits {
	return storetypes.Limits{
		MinPartSize:   minPartSize,
		MaxPartSize:   maxPartSize,
		MaxParts:      maxParts,
		MaxObjectSize: maxObjectSize,
	}
}

// Close releases resources held by the provider. Currently a no-op.
func (p *Provider) Close() error {
	return nil
}

// isNoSuchKey checks if an error indicates a missing object key.
func isNoSuchKey(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	errMsg := err.Error()
	return strings.Contains(errMsg, "NoSuchKey") || strings.Contains(errMsg, "NotFound")
}

// Verify interface satisfaction
var _ provider.Provider = (*Provider)(nil)
