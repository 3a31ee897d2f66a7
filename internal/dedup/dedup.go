// Package dedup flags staged rows that are already stored.
package dedup

import (
	"context"
	"fmt"

	"github.com/conciliar-dev/conciliar/internal/model"
)

// Lookup is the read side of the store the resolver needs.
type Lookup interface {
	DocumentExists(ctx context.Context, hash string) (bool, error)
	FindDuplicate(ctx context.Context, key model.DedupKey) (int64, bool, error)
}

// Resolver classifies a staged batch against stored data. It never drops rows.
type Resolver struct {
	lookup Lookup
}

// NewResolver creates a Resolver.
func NewResolver(l Lookup) *Resolver {
	return &Resolver{lookup: l}
}

// Check sets the batch status to DUPLICATE_WHOLE when its document was already
// committed, otherwise STAGED, and flags every candidate whose dedup tuple
// matches a stored transaction.
func (r *Resolver) Check(ctx context.Context, b *model.ImportBatch) error {
	whole, err := r.lookup.DocumentExists(ctx, b.DocumentHash)
	if err != nil {
		return fmt.Errorf("checking document %s: %w", b.DocumentHash, err)
	}
	b.Status = model.BatchStaged
	if whole {
		b.Status = model.BatchDuplicateWhole
	}

	for i := range b.Candidates {
		c := &b.Candidates[i]
		id, ok, err := r.lookup.FindDuplicate(ctx, c.Key(b.Bank, b.Company, b.Account))
		if err != nil {
			return fmt.Errorf("checking row %d: %w", c.Row, err)
		}
		c.Duplicate = ok
		c.DuplicateOf = id
	}
	return nil
}
