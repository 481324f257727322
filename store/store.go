package store

import (
	"context"

	"github.com/custodia-sh/custodia/model"
)

// Store is a minimal keyed account store.
//
// Contract:
// - Get MUST return ErrNotFound when the id is absent.
// - Put MUST create or replace the record for its id.
// - Apply MUST persist every record in the batch or none of them; a batch
//   interrupted by a crash MUST finish applying when the store is reopened.
// - Records crossing the boundary are copies; callers may mutate what they
//   get back without affecting the store.
// - Reads MUST observe completed writes within the same process. No
//   multi-process coordination is assumed.
type Store interface {
	Get(ctx context.Context, id string) (*model.Account, error)
	Exists(ctx context.Context, id string) (bool, error)
	Put(ctx context.Context, account *model.Account) error
	Scan(ctx context.Context) ([]*model.Account, error)
	Apply(ctx context.Context, batch []*model.Account) error
}
