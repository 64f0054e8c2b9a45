package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/gulautos/storefront-backend/pkg/db/models"
	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/logger"
	"github.com/gulautos/storefront-backend/pkg/metrics"
)

const (
	opAdd    = "add"
	opUpdate = "update_quantity"
	opRemove = "remove"
	opEmpty  = "empty"
	opDrain  = "drain"
)

// Result is a cart after an operation, flagged with whether the operation
// changed it.
type Result struct {
	State
	Changed bool `json:"changed"`
}

// Service owns every owner's cart. Calls for one owner are serialized.
type Service interface {
	Get(ctx context.Context, ownerID uuid.UUID) (State, error)
	Add(ctx context.Context, ownerID, productID uuid.UUID, quantity int) (Result, error)
	UpdateQuantity(ctx context.Context, ownerID, productID uuid.UUID, quantity int) (Result, error)
	Remove(ctx context.Context, ownerID, productID uuid.UUID) (Result, error)
	Empty(ctx context.Context, ownerID uuid.UUID) (Result, error)
	// Drain hands the sanitized cart to fn while holding the owner's lock and
	// empties the cart when fn succeeds.
	Drain(ctx context.Context, ownerID uuid.UUID, fn func(State) error) error
}

// productLookup returns nil when the product is missing or inactive.
type productLookup interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type service struct {
	store    Store
	products productLookup
	metrics  *metrics.CartMetrics
	logg     *logger.Logger
	locks    *ownerLocks
	loads    singleflight.Group
}

// NewService builds the cart service. metrics may be nil.
func NewService(store Store, products productLookup, cartMetrics *metrics.CartMetrics, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		store:    store,
		products: products,
		metrics:  cartMetrics,
		logg:     logg,
		locks:    newOwnerLocks(),
	}, nil
}

func (s *service) Get(ctx context.Context, ownerID uuid.UUID) (State, error) {
	if ownerID == uuid.Nil {
		return State{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing cart owner")
	}
	key := ownerID.String()

	// The shared load outlives any single caller; each caller only stops
	// waiting on its own cancellation.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.loads.DoChan(key, func() (interface{}, error) {
		unlock := s.locks.lock(key)
		defer unlock()
		return s.loadSanitized(loadCtx, key)
	})
	select {
	case <-ctx.Done():
		return State{}, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "load cart")
	case res := <-ch:
		if res.Err != nil {
			return State{}, res.Err
		}
		return res.Val.(State).Clone(), nil
	}
}

func (s *service) Add(ctx context.Context, ownerID, productID uuid.UUID, quantity int) (Result, error) {
	if ownerID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing cart owner")
	}
	item, err := s.catalogItem(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	item.Quantity = quantity

	return s.mutate(ctx, ownerID, opAdd, func(state *State) bool {
		return state.AddToCart(item)
	})
}

// UpdateQuantity checks the new quantity against the live catalog stock. The
// refreshed line is only kept when the update applies.
func (s *service) UpdateQuantity(ctx context.Context, ownerID, productID uuid.UUID, quantity int) (Result, error) {
	if ownerID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing cart owner")
	}
	item, err := s.catalogItem(ctx, productID)
	if err != nil {
		return Result{}, err
	}

	return s.mutate(ctx, ownerID, opUpdate, func(state *State) bool {
		next := state.Clone()
		next.Refresh(item)
		if !next.UpdateQuantity(item.ID, quantity) {
			return false
		}
		*state = next
		return true
	})
}

// catalogItem resolves an active product into a cart line without a quantity.
func (s *service) catalogItem(ctx context.Context, productID uuid.UUID) (Item, error) {
	product, err := s.products.FindActiveByID(ctx, productID)
	if err != nil {
		return Item{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup product")
	}
	if product == nil {
		return Item{}, pkgerrors.NotFound("product")
	}
	item := Item{
		ID:    product.ID.String(),
		Name:  product.Name,
		Price: product.Price,
		Stock: product.Stock,
	}
	if product.ImageURL != nil {
		item.Image = *product.ImageURL
	}
	return item, nil
}

func (s *service) Remove(ctx context.Context, ownerID, productID uuid.UUID) (Result, error) {
	return s.mutate(ctx, ownerID, opRemove, func(state *State) bool {
		return state.RemoveFromCart(productID.String())
	})
}

func (s *service) Empty(ctx context.Context, ownerID uuid.UUID) (Result, error) {
	return s.mutate(ctx, ownerID, opEmpty, func(state *State) bool {
		return state.EmptyCart()
	})
}

func (s *service) Drain(ctx context.Context, ownerID uuid.UUID, fn func(State) error) error {
	if ownerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing cart owner")
	}
	if fn == nil {
		return fmt.Errorf("drain callback required")
	}
	key := ownerID.String()
	unlock := s.locks.lock(key)
	defer unlock()

	state, err := s.loadSanitized(ctx, key)
	if err != nil {
		return err
	}
	if err := fn(state.Clone()); err != nil {
		return err
	}

	empty := Empty()
	if err := s.store.Save(ctx, key, empty); err != nil {
		// The order is already committed; a stale cart is recoverable.
		s.logg.Error(ctx, "cart.drain.save_failed", err)
	}
	s.metrics.Mutation(opDrain, len(state.Items) > 0)
	return nil
}

func (s *service) mutate(ctx context.Context, ownerID uuid.UUID, op string, fn func(*State) bool) (Result, error) {
	if ownerID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing cart owner")
	}
	key := ownerID.String()
	unlock := s.locks.lock(key)
	defer unlock()

	state, err := s.store.Load(ctx, key)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	sanitized := state.Sanitize()
	changed := fn(&state)

	if changed || sanitized {
		if err := s.store.Save(ctx, key, state); err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
		}
	}

	s.metrics.Mutation(op, changed)
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{"op": op, "changed": changed}), "cart.mutation")

	return Result{State: state, Changed: changed}, nil
}

func (s *service) loadSanitized(ctx context.Context, key string) (State, error) {
	state, err := s.store.Load(ctx, key)
	if err != nil {
		return State{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if state.Sanitize() {
		if err := s.store.Save(ctx, key, state); err != nil {
			return State{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save sanitized cart")
		}
	}
	return state, nil
}

type ownerLock struct {
	sync.Mutex
	refs int
}

// ownerLocks hands out one mutex per owner and forgets it once no caller
// holds or waits on it.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[string]*ownerLock
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{locks: make(map[string]*ownerLock)}
}

func (l *ownerLocks) lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &ownerLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *ownerLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
