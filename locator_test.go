package cloudstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backhaul-io/cloudstore/errors"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantBucket string
		wantPrefix string
		wantErr    bool
	}{
		{
			name:       "scheme form",
			raw:        "gs://backups/prod/server1",
			wantBucket: "backups",
			wantPrefix: "prod/server1",
		},
		{
			name:       "bucket only",
			raw:        "gs://backups",
			wantBucket: "backups",
			wantPrefix: "",
		},
		{
			name:       "trailing slash stripped",
			raw:        "gs://backups/prod/",
			wantBucket: "backups",
			wantPrefix: "prod",
		},
		{
			name:       "deep path",
			raw:        "gs://backups/a/b/c/d",
			wantBucket: "backups",
			wantPrefix: "a/b/c/d",
		},
		{
			name:       "console browser form",
			raw:        "https://console.cloud.google.com/storage/browser/backups/prod/server1",
			wantBucket: "backups",
			wantPrefix: "prod/server1",
		},
		{
			name:       "console browser form bucket only",
			raw:        "https://console.cloud.google.com/storage/browser/backups",
			wantBucket: "backups",
			wantPrefix: "",
		},
		{
			name:    "missing bucket",
			raw:     "gs://",
			wantErr: true,
		},
		{
			name:    "empty string",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "bare path",
			raw:     "/just/a/path",
			wantErr: true,
		},
		{
			name:    "foreign scheme",
			raw:     "http://example.com/foo",
			wantErr: true,
		},
		{
			name:    "s3 scheme",
			raw:     "s3://backups/prod",
			wantErr: true,
		},
		{
			name:    "console host outside browser path",
			raw:     "https://console.cloud.google.com/storage/buckets/backups",
			wantErr: true,
		},
		{
			name:    "no scheme",
			raw:     "backups/prod",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseLocator(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrMalformedLocator)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, loc.Bucket)
			assert.Equal(t, tt.wantPrefix, loc.Prefix)
		})
	}
}
