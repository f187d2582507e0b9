package cloudstore

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/backhaul-io/cloudstore/errors"
	"github.com/backhaul-io/cloudstore/storetypes"
)

// browserBaseURL is the console "browser" URL form accepted as an alias for
// the gs:// scheme.
const browserBaseURL = "https://console.cloud.google.com/storage/browser/"

// ParseLocator resolves a storage locator into its bucket and prefix. Two
// forms are accepted:
//
//	gs://bucket/path/under/bucket
//	https://console.cloud.google.com/storage/browser/bucket/path/under/bucket
//
// The prefix has no leading or trailing slash; "gs://bucket" and
// "gs://bucket/" both resolve to an empty prefix. A locator matching neither
// form, or without a bucket, fails with errors.ErrMalformedLocator.
func ParseLocator(raw string) (storetypes.Locator, error) {
	normalized := raw
	if strings.HasPrefix(normalized, browserBaseURL) {
		normalized = "gs://" + strings.TrimPrefix(normalized, browserBaseURL)
	}
	if !strings.HasPrefix(normalized, "gs://") {
		return storetypes.Locator{}, fmt.Errorf("unrecognized locator form %q: %w", raw, errors.ErrMalformedLocator)
	}

	parsed, err := url.Parse(normalized)
	if err != nil {
		return storetypes.Locator{}, fmt.Errorf("parse %q: %w", raw, errors.ErrMalformedLocator)
	}
	if parsed.Host == "" {
		return storetypes.Locator{}, fmt.Errorf("no bucket in %q: %w", raw, errors.ErrMalformedLocator)
	}

	return storetypes.Locator{
		Bucket: parsed.Host,
		Prefix: strings.Trim(parsed.Path, "/"),
	}, nil
}
