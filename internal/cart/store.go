package cart

import (
	"context"
)

// Store persists one cart per owner. Load returns an empty cart when the owner
// has none.
type Store interface {
	Load(ctx context.Context, ownerID string) (State, error)
	Save(ctx context.Context, ownerID string, state State) error
	Delete(ctx context.Context, ownerID string) error
}
