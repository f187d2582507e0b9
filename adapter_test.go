package cloudstore

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backhaul-io/cloudstore/errors"
	"github.com/backhaul-io/cloudstore/internal/testutil"
	"github.com/backhaul-io/cloudstore/provider"
	"github.com/backhaul-io/cloudstore/storetypes"
)

func newTestAdapter(t *testing.T, fake *testutil.FakeProvider, opts ...Option) *Adapter {
	t.Helper()
	opts = append([]Option{WithProviderFactory(fake.Factory())}, opts...)
	a, err := New(context.Background(), "gs://backups/prod/db1", opts...)
	require.NoError(t, err)
	return a
}

func TestNew_MalformedLocator(t *testing.T) {
	_, err := New(context.Background(), "gs://")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMalformedLocator)
}

func TestNew_FactoryError(t *testing.T) {
	boom := stderrors.New("no credentials")
	factory := func(ctx context.Context, bucket string) (provider.Provider, error) {
		return nil, boom
	}
	_, err := New(context.Background(), "gs://backups", WithProviderFactory(factory))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestNew_ResolvesLocator(t *testing.T) {
	a := newTestAdapter(t, testutil.NewFakeProvider())
	assert.Equal(t, storetypes.Locator{Bucket: "backups", Prefix: "prod/db1"}, a.Locator())
}

func TestTestConnectivity(t *testing.T) {
	t.Run("bucket exists", func(t *testing.T) {
		a := newTestAdapter(t, testutil.NewFakeProvider())
		assert.True(t, a.TestConnectivity(context.Background()))
	})

	t.Run("bucket missing but service reachable", func(t *testing.T) {
		a := newTestAdapter(t, testutil.NewEmptyFakeProvider())
		assert.True(t, a.TestConnectivity(context.Background()),
			"a completed existence check is connectivity, whatever it found")
	})

	t.Run("provider error yields false, not panic", func(t *testing.T) {
		fake := testutil.NewFakeProvider()
		fake.HeadErr = stderrors.New("connection refused")
		a := newTestAdapter(t, fake)
		assert.False(t, a.TestConnectivity(context.Background()))
	})
}

func TestSetupBucket_CreatesWhenMissing(t *testing.T) {
	fake := testutil.NewEmptyFakeProvider()
	a := newTestAdapter(t, fake)
	ctx := context.Background()

	require.False(t, fake.HasBucket())
	require.NoError(t, a.SetupBucket(ctx))
	assert.True(t, fake.HasBucket())
}

func TestSetupBucket_UsesCachedProbe(t *testing.T) {
	fake := testutil.NewEmptyFakeProvider()
	a := newTestAdapter(t, fake)
	ctx := context.Background()

	// the probe caches "absent"; SetupBucket must create without a second
	// existence check
	require.True(t, a.TestConnectivity(ctx))
	fake.HeadErr = stderrors.New("throttled")
	require.NoError(t, a.SetupBucket(ctx))
	assert.True(t, fake.HasBucket())
}

func TestSetupBucket_ExistingBucketIsNoop(t *testing.T) {
	fake := testutil.NewFakeProvider()
	a := newTestAdapter(t, fake)
	ctx := context.Background()

	require.True(t, a.TestConnectivity(ctx))

	// the cached probe must short-circuit: a HEAD failure after caching
	// cannot surface
	fake.HeadErr = stderrors.New("throttled")
	assert.NoError(t, a.SetupBucket(ctx))
}

func TestListBucket_ObjectsThenDirectories(t *testing.T) {
	fake := testutil.NewFakeProvider()
	fake.SetObject("prod/db1/backup.info", []byte("x"))
	fake.SetObject("prod/db1/wals/001", []byte("x"))
	fake.SetObject("prod/db1/wals/002", []byte("x"))
	a := newTestAdapter(t, fake)

	flat, err := a.ListBucket(context.Background(), "prod/db1/", "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"prod/db1/backup.info", "prod/db1/wals/"}, flat)
}

func TestListBucket_EmptyDelimiterUsesConfiguredDefault(t *testing.T) {
	fake := testutil.NewFakeProvider()
	fake.SetObject("prod/db1/backup.info", []byte("x"))
	fake.SetObject("prod/db1/wals/001", []byte("x"))
	a := newTestAdapter(t, fake)

	flat, err := a.ListBucket(context.Background(), "prod/db1/", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"prod/db1/backup.info", "prod/db1/wals/"}, flat,
		"empty delimiter must group by the default /")
}

func TestListBucket_ConfiguredDelimiterOverride(t *testing.T) {
	fake := testutil.NewFakeProvider()
	fake.SetObject("prod|db1|backup.info", []byte("x"))
	fake.SetObject("prod|db2|backup.info", []byte("x"))
	a := newTestAdapter(t, fake, WithDelimiter("|"))

	flat, err := a.ListBucket(context.Background(), "prod|", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"prod|db1|", "prod|db2|"}, flat)
}

func TestUploadFileobjAndRemoteOpen_RoundTrip(t *testing.T) {
	a := newTestAdapter(t, testutil.NewFakeProvider())
	ctx := context.Background()

	payload := bytes.Repeat([]byte("wal segment "), 512)
	require.NoError(t, a.UploadFileobj(ctx, bytes.NewReader(payload), "prod/db1/wals/001"))

	rc, err := a.RemoteOpen(ctx, "prod/db1/wals/001")
	require.NoError(t, err)
	require.NotNil(t, rc)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRemoteOpen_MissingKey(t *testing.T) {
	a := newTestAdapter(t, testutil.NewFakeProvider())

	rc, err := a.RemoteOpen(context.Background(), "prod/db1/nope")
	require.NoError(t, err)
	assert.Nil(t, rc)
}

func TestMultipart_ExternallyDrivenSession(t *testing.T) {
	fake := testutil.NewFakeProvider()
	a := newTestAdapter(t, fake)
	ctx := context.Background()

	handle, err := a.CreateMultipartUpload(ctx, "prod/db1/base.tar")
	require.NoError(t, err)

	p1, err := a.UploadPart(ctx, handle, "prod/db1/base.tar", strings.NewReader("first,"), 1)
	require.NoError(t, err)
	p2, err := a.UploadPart(ctx, handle, "prod/db1/base.tar", strings.NewReader("second"), 2)
	require.NoError(t, err)

	require.NoError(t, a.CompleteMultipartUpload(ctx, handle, "prod/db1/base.tar",
		[]storetypes.PartRecord{p2, p1}))

	data, ok := fake.Object("prod/db1/base.tar")
	require.True(t, ok)
	assert.Equal(t, []byte("first,second"), data)
}

func TestMultipart_AbortDiscardsParts(t *testing.T) {
	fake := testutil.NewFakeProvider()
	a := newTestAdapter(t, fake)
	ctx := context.Background()

	handle, err := a.CreateMultipartUpload(ctx, "key")
	require.NoError(t, err)
	_, err = a.UploadPart(ctx, handle, "key", strings.NewReader("staged"), 1)
	require.NoError(t, err)

	require.NoError(t, a.AbortMultipartUpload(ctx, handle, "key"))
	assert.Zero(t, fake.StagedPartCount("key"))
	_, ok := fake.Object("key")
	assert.False(t, ok)
}

func TestUploadStream_OutOfOrderPartsReassemble(t *testing.T) {
	fake := testutil.NewFakeProvider()
	a := newTestAdapter(t, fake, WithPartSize(1000), WithJobs(3))
	ctx := context.Background()

	// 2500 bytes at a 1000-byte part size: three parts of 1000, 1000, 500,
	// transferred on three workers that may finish in any order.
	payload := make([]byte, 2500)
	for i := range payload {
		payload[i] = byte(i)
	}

	require.NoError(t, a.UploadStream(ctx, bytes.NewReader(payload), "prod/db1/base.tar"))

	data, ok := fake.Object("prod/db1/base.tar")
	require.True(t, ok)
	assert.Len(t, data, 2500)
	assert.Equal(t, payload, data)
}

func TestDeleteObjects_PartialFailure(t *testing.T) {
	fake := testutil.NewFakeProvider()
	fake.SetObject("keep-failing", []byte("x"))
	fake.SetObject("fine", []byte("x"))
	denied := stderrors.New("access denied")
	fake.DeleteErr = func(key string) error {
		if key == "keep-failing" {
			return denied
		}
		return nil
	}
	a := newTestAdapter(t, fake)

	err := a.DeleteObjects(context.Background(), []string{"fine", "keep-failing"})
	require.Error(t, err)

	var batchErr *errors.DeleteBatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, []string{"keep-failing"}, batchErr.FailedKeys())
	_, ok := fake.Object("fine")
	assert.False(t, ok)
}

func TestInitialize_ReplacesSession(t *testing.T) {
	first := testutil.NewFakeProvider()
	second := testutil.NewFakeProvider()
	providers := []*testutil.FakeProvider{first, second}
	i := 0
	factory := func(ctx context.Context, bucket string) (provider.Provider, error) {
		p := providers[i]
		i++
		return p, nil
	}

	a, err := New(context.Background(), "gs://backups", WithProviderFactory(factory))
	require.NoError(t, err)

	require.NoError(t, a.Initialize(context.Background()))
	assert.True(t, first.Closed(), "replaced session's provider must be closed")
	assert.False(t, second.Closed())

	// operations flow to the new session
	second.SetObject("k", []byte("v"))
	rc, err := a.RemoteOpen(context.Background(), "k")
	require.NoError(t, err)
	require.NotNil(t, rc)
	rc.Close()
}

func TestClose_BlocksFurtherOperations(t *testing.T) {
	fake := testutil.NewFakeProvider()
	a := newTestAdapter(t, fake)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "close is idempotent")
	assert.True(t, fake.Closed())

	_, err := a.ListBucket(context.Background(), "", "/")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSessionClosed)

	err = a.UploadFileobj(context.Background(), strings.NewReader("x"), "k")
	assert.ErrorIs(t, err, errors.ErrSessionClosed)

	assert.False(t, a.TestConnectivity(context.Background()))
}

func TestOperationErrors_CarryOpAndBucket(t *testing.T) {
	fake := testutil.NewFakeProvider()
	fake.ListErr = stderrors.New("boom")
	a := newTestAdapter(t, fake)

	_, err := a.ListObjects(context.Background(), "", "/")
	require.Error(t, err)

	var opErr *errors.Error
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "ListObjects", opErr.Op)
	assert.Equal(t, "backups", opErr.Bucket)
}
