// Package list implements exhaustive, delimiter-aware bucket listing on top
// of the provider's page primitive.
package list

import (
	"context"

	"github.com/backhaul-io/cloudstore/provider"
	"github.com/backhaul-io/cloudstore/storetypes"
)

// Lister drains paginated listings into complete results.
type Lister struct {
	provider provider.Provider
}

// New creates a Lister backed by p.
func New(p provider.Provider) *Lister {
	return &Lister{provider: p}
}

// List walks every page under prefix and returns the full set of object keys
// plus the common prefixes the delimiter grouped. Providers may report the
// same common prefix on more than one page; each appears exactly once in the
// result, at the position of its first sighting. Key order is the provider's
// page order.
func (l *Lister) List(ctx context.Context, prefix, delimiter string) (*storetypes.ListingResult, error) {
	result := &storetypes.ListingResult{}
	seen := map[string]bool{}
	token := ""

	for {
		page, err := l.provider.ListPage(ctx, prefix, delimiter, token)
		if err != nil {
			return nil, err
		}
		result.Objects = append(result.Objects, page.Keys...)
		for _, cp := range page.Prefixes {
			if !seen[cp] {
				seen[cp] = true
				result.Prefixes = append(result.Prefixes, cp)
			}
		}
		if !page.Truncated || page.NextToken == "" {
			break
		}
		token = page.NextToken
	}
	return result, nil
}
