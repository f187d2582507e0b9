// Package storetypes provides shared type definitions for the cloudstore module.
package storetypes

// Locator identifies a backup destination or source: a container (bucket) and
// an object-key prefix inside it. It is derived once from the user-supplied
// URL and never mutated afterwards.
type Locator struct {
	// Bucket is the container name; always non-empty for a valid locator
	Bucket string

	// Prefix is the object-key prefix with no leading or trailing separators;
	// may be empty, meaning the whole container
	Prefix string
}

// UploadHandle is the provider-opaque token identifying one in-progress
// multipart upload. Providers that need no explicit multipart session return
// the zero value; the rest of the protocol is unchanged.
type UploadHandle string

// PartRecord describes one uploaded chunk of a multipart upload. The Metadata
// mapping (for example a content checksum or ETag) is opaque to the
// orchestration layer and passed through verbatim to the completion call.
type PartRecord struct {
	// PartNumber is the caller-assigned sequence number, starting at 1
	PartNumber int32

	// Metadata holds provider-specific part metadata, passed through to
	// completion untouched
	Metadata map[string]string
}

// ListingResult is the outcome of a hierarchical listing over a flat key
// namespace. Prefixes are synthetic, derived from the provider's
// delimiter-based grouping; they are not real entities.
type ListingResult struct {
	// Objects are the keys directly under the requested prefix, in the
	// provider's native enumeration order
	Objects []string

	// Prefixes are the distinct virtual directories implied by deeper keys,
	// each reported exactly once
	Prefixes []string
}

// ListPage is one page of a provider listing. The orchestration layer
// exhausts pagination transparently; callers never see pages.
type ListPage struct {
	// Keys are the object keys on this page
	Keys []string

	// Prefixes are the common prefixes on this page (may repeat across pages)
	Prefixes []string

	// NextToken continues the listing when Truncated is true
	NextToken string

	// Truncated indicates more pages are available
	Truncated bool
}

// Limits describes a provider's multipart-upload constraints. Enforcement is
// parameterized on these values rather than hardcoded to one provider.
type Limits struct {
	// MinPartSize is the smallest allowed size for any part except the last
	MinPartSize int64

	// MaxPartSize is the largest allowed size for a single part
	MaxPartSize int64

	// MaxParts is the maximum number of parts in one upload
	MaxParts int32

	// MaxObjectSize is the maximum size of the assembled object
	MaxObjectSize int64
}
