package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gulautos/storefront-backend/pkg/db/models"
	pkgerrors "github.com/gulautos/storefront-backend/pkg/errors"
	"github.com/gulautos/storefront-backend/pkg/logger"
	"github.com/gulautos/storefront-backend/pkg/metrics"
)

type memoryStore struct {
	mu      sync.Mutex
	carts   map[string]State
	loads   int
	saves   int
	loadErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{carts: map[string]State{}}
}

func (m *memoryStore) Load(_ context.Context, ownerID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return State{}, m.loadErr
	}
	if s, ok := m.carts[ownerID]; ok {
		return s.Clone(), nil
	}
	return Empty(), nil
}

func (m *memoryStore) Save(_ context.Context, ownerID string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.carts[ownerID] = state.Clone()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, ownerID)
	return nil
}

type stubProducts struct {
	products map[uuid.UUID]*models.Product
}

func (s stubProducts) FindActiveByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok || !p.IsActive {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func newProduct(price string, stock int) *models.Product {
	img := "https://cdn.example/p.png"
	return &models.Product{
		ID:       uuid.New(),
		Name:     "Oil filter",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		ImageURL: &img,
		IsActive: true,
	}
}

func newTestService(t *testing.T, store Store, products ...*models.Product) (Service, *metrics.CartMetrics, *prometheus.Registry) {
	t.Helper()
	catalog := stubProducts{products: map[uuid.UUID]*models.Product{}}
	for _, p := range products {
		catalog.products[p.ID] = p
	}
	reg := prometheus.NewRegistry()
	m := metrics.NewCartMetrics(reg)
	svc, err := NewService(store, catalog, m, logger.Nop())
	require.NoError(t, err)
	return svc, m, reg
}

func TestServiceAddResolvesCatalogData(t *testing.T) {
	product := newProduct("19.99", 4)
	store := newMemoryStore()
	svc, _, _ := newTestService(t, store, product)
	owner := uuid.New()

	res, err := svc.Add(context.Background(), owner, product.ID, 2)
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Len(t, res.Items, 1)
	assert.Equal(t, product.ID.String(), res.Items[0].ID)
	assert.Equal(t, "Oil filter", res.Items[0].Name)
	assert.Equal(t, 4, res.Items[0].Stock)
	assert.Equal(t, *product.ImageURL, res.Items[0].Image)
	assert.True(t, res.TotalPrice.Equal(decimal.RequireFromString("39.98")))

	stored, err := store.Load(context.Background(), owner.String())
	require.NoError(t, err)
	assert.True(t, stored.Equal(res.State), "mutation persisted before returning")
}

func TestServiceAddBeyondStockIsNoop(t *testing.T) {
	product := newProduct("5", 1)
	store := newMemoryStore()
	svc, _, reg := newTestService(t, store, product)
	owner := uuid.New()

	_, err := svc.Add(context.Background(), owner, product.ID, 1)
	require.NoError(t, err)
	saves := store.saves

	res, err := svc.Add(context.Background(), owner, product.ID, 1)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 1, res.TotalQuantity)
	assert.Equal(t, saves, store.saves, "no-op must not persist")

	assert.Equal(t, 1.0, counterValue(t, reg, "add", "noop"))
	assert.Equal(t, 1.0, counterValue(t, reg, "add", "applied"))
}

func counterValue(t *testing.T, reg *prometheus.Registry, op, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "storefront_cart_mutations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["op"] == op && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestServiceAddUnknownOrInactiveProduct(t *testing.T) {
	inactive := newProduct("5", 3)
	inactive.IsActive = false
	svc, _, _ := newTestService(t, newMemoryStore(), inactive)

	_, err := svc.Add(context.Background(), uuid.New(), uuid.New(), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Add(context.Background(), uuid.New(), inactive.ID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceUpdateRemoveEmpty(t *testing.T) {
	a := newProduct("2", 5)
	b := newProduct("3", 5)
	svc, _, _ := newTestService(t, newMemoryStore(), a, b)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Add(ctx, owner, a.ID, 1)
	require.NoError(t, err)
	_, err = svc.Add(ctx, owner, b.ID, 1)
	require.NoError(t, err)

	res, err := svc.UpdateQuantity(ctx, owner, a.ID, 5)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 6, res.TotalQuantity)

	res, err = svc.UpdateQuantity(ctx, owner, a.ID, 6)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	res, err = svc.Remove(ctx, owner, uuid.New())
	require.NoError(t, err)
	assert.False(t, res.Changed)

	res, err = svc.Remove(ctx, owner, b.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.TotalPrice.Equal(decimal.NewFromInt(10)))

	res, err = svc.Empty(ctx, owner)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Empty(t, res.Items)

	got, err := svc.Get(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, got.Items)
}

func TestServiceUpdateQuantityChecksLiveStock(t *testing.T) {
	product := newProduct("5", 2)
	store := newMemoryStore()
	svc, _, _ := newTestService(t, store, product)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Add(ctx, owner, product.ID, 2)
	require.NoError(t, err)

	product.Stock = 10
	res, err := svc.UpdateQuantity(ctx, owner, product.ID, 5)
	require.NoError(t, err)
	require.True(t, res.Changed, "restocked product can be raised")
	line, _ := res.Line(product.ID.String())
	assert.Equal(t, 5, line.Quantity)
	assert.Equal(t, 10, line.Stock)

	product.Stock = 1
	product.Price = decimal.NewFromInt(7)
	res, err = svc.UpdateQuantity(ctx, owner, product.ID, 4)
	require.NoError(t, err)
	assert.False(t, res.Changed, "quantity above live stock is refused")
	line, _ = res.Line(product.ID.String())
	assert.Equal(t, 5, line.Quantity)
	assert.Equal(t, 10, line.Stock, "refused update keeps the stored line")

	res, err = svc.UpdateQuantity(ctx, owner, product.ID, 1)
	require.NoError(t, err)
	require.True(t, res.Changed)
	line, _ = res.Line(product.ID.String())
	assert.Equal(t, 1, line.Stock)
	assert.True(t, line.Price.Equal(decimal.NewFromInt(7)))
	assert.True(t, res.TotalPrice.Equal(decimal.NewFromInt(7)))
	assert.True(t, res.Consistent())

	stored, err := store.Load(ctx, owner.String())
	require.NoError(t, err)
	assert.True(t, stored.Equal(res.State))

	product.IsActive = false
	_, err = svc.UpdateQuantity(ctx, owner, product.ID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

// blockingStore holds Load until release is closed and fails with the
// context's error, as a network-backed store would.
type blockingStore struct {
	*memoryStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) Load(ctx context.Context, ownerID string) (State, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	return b.memoryStore.Load(ctx, ownerID)
}

func TestServiceGetSharedLoadSurvivesCallerCancel(t *testing.T) {
	store := &blockingStore{
		memoryStore: newMemoryStore(),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	svc, _, _ := newTestService(t, store)
	owner := uuid.New()

	cancelled, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Get(cancelled, owner)
		firstErr <- err
	}()
	<-store.entered

	secondErr := make(chan error, 1)
	go func() {
		_, err := svc.Get(context.Background(), owner)
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-firstErr
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	close(store.release)
	assert.NoError(t, <-secondErr)
}

func TestServiceGetWritesBackSanitizedState(t *testing.T) {
	store := newMemoryStore()
	owner := uuid.New()
	store.carts[owner.String()] = State{
		Items: []Item{
			{ID: "good", Price: decimal.NewFromInt(2), Quantity: 1, Stock: 1},
			{ID: "bad", Price: decimal.NewFromInt(2), Quantity: 3, Stock: 1},
		},
		TotalQuantity: 4,
		TotalPrice:    decimal.NewFromInt(8),
	}
	svc, _, _ := newTestService(t, store)

	got, err := svc.Get(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 1, got.TotalQuantity)

	stored := store.carts[owner.String()]
	assert.True(t, stored.Equal(got))
	assert.Equal(t, 1, store.saves)
}

func TestServiceConcurrentAddsRespectStock(t *testing.T) {
	const n = 25
	product := newProduct("1", n)
	store := newMemoryStore()
	svc, _, _ := newTestService(t, store, product)
	owner := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < n+5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Add(context.Background(), owner, product.ID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.Get(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, n, got.Items[0].Quantity)
	assert.True(t, got.Consistent())
	assert.Equal(t, 0, svc.(*service).locks.size(), "owner locks are released")
}

func TestServiceDrain(t *testing.T) {
	product := newProduct("4", 2)
	store := newMemoryStore()
	svc, _, _ := newTestService(t, store, product)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Add(ctx, owner, product.ID, 2)
	require.NoError(t, err)

	boom := errors.New("checkout failed")
	err = svc.Drain(ctx, owner, func(State) error { return boom })
	require.ErrorIs(t, err, boom)
	kept, _ := svc.Get(ctx, owner)
	assert.Equal(t, 2, kept.TotalQuantity, "failed drain keeps the cart")

	var seen State
	require.NoError(t, svc.Drain(ctx, owner, func(s State) error {
		seen = s
		return nil
	}))
	assert.Equal(t, 2, seen.TotalQuantity)
	after, _ := svc.Get(ctx, owner)
	assert.Empty(t, after.Items)
}

func TestServiceLoadFailureIsDependencyError(t *testing.T) {
	store := newMemoryStore()
	store.loadErr = errors.New("redis down")
	svc, _, _ := newTestService(t, store)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	_, err = svc.Empty(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestServiceRejectsNilOwner(t *testing.T) {
	svc, _, _ := newTestService(t, newMemoryStore())
	_, err := svc.Get(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}
