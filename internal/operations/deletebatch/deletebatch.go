// Package deletebatch implements bulk object deletion with per-key failure
// accounting.
package deletebatch

import (
	"context"

	"github.com/backhaul-io/cloudstore/errors"
	"github.com/backhaul-io/cloudstore/provider"
)

// Deleter removes sets of objects.
type Deleter struct {
	provider provider.Provider
}

// New creates a Deleter backed by p.
func New(p provider.Provider) *Deleter {
	return &Deleter{provider: p}
}

// Delete removes every key in keys. Duplicate keys are collapsed to one
// attempt. Each deletion is independent: a failure on one key never stops
// the rest. When any key fails, the returned error is a
// *errors.DeleteBatchError carrying every failed key with its cause; nil
// means the whole batch succeeded.
func (d *Deleter) Delete(ctx context.Context, keys []string) error {
	seen := make(map[string]bool, len(keys))
	failures := make(map[string]error)

	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := d.provider.DeleteObject(ctx, key); err != nil {
			failures[key] = err
		}
	}

	if len(failures) > 0 {
		return &errors.DeleteBatchError{Failures: failures}
	}
	return nil
}
