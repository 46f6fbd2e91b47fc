package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/idempotency"
	"storefront/internal/repository/memory"
	"storefront/internal/seed"
)

type fixture struct {
	store    *memory.Store
	idem     *idempotency.MemoryStore
	products domain.ProductUseCase
	users    domain.UserUseCase
	orders   domain.OrderUseCase
	seeder   domain.SeedUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memory.NewStore(logger)
	idem := idempotency.NewMemoryStore(time.Hour)
	catalog, err := seed.Load()
	require.NoError(t, err)

	return &fixture{
		store:    store,
		idem:     idem,
		products: NewProductUseCase(store, logger),
		users:    NewUserUseCase(store, logger),
		orders:   NewOrderUseCase(store, store, store, idem, logger),
		seeder:   NewSeedUseCase(catalog, store, store, store, logger),
	}
}

func (f *fixture) product(t *testing.T, name string, price float64, stock int) *domain.Product {
	t.Helper()
	p, err := f.store.CreateProduct(context.Background(), &domain.Product{Name: name, Price: price, Stock: stock, Category: "test"})
	require.NoError(t, err)
	return p
}

func (f *fixture) customer(t *testing.T) *domain.User {
	t.Helper()
	u, _, err := f.users.FindOrCreate(context.Background(), domain.CreateUserRequest{Email: "buyer@example.com", Name: "Buyer"})
	require.NoError(t, err)
	return u
}

var address = domain.ShippingAddress{
	Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701", Country: "USA",
}

func request(userID string, lines ...domain.OrderLine) *domain.CreateOrderRequest {
	return &domain.CreateOrderRequest{UserID: userID, Items: lines, ShippingAddress: address}
}

func TestCreateOrder_TotalFromSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.product(t, "A", 10, 10)
	b := f.product(t, "B", 5, 10)
	u := f.customer(t)

	order, err := f.orders.CreateOrder(ctx, request(u.ID,
		domain.OrderLine{ProductID: a.ID, Quantity: 2},
		domain.OrderLine{ProductID: b.ID, Quantity: 1},
	), "")
	require.NoError(t, err)

	assert.Equal(t, 25.00, order.Total)
	assert.Equal(t, domain.StatusProcessing, order.Status)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "A", order.Items[0].Name)
	require.NotNil(t, order.User)
	assert.Equal(t, "buyer@example.com", order.User.Email)

	require.NoError(t, f.store.SetProductPrice(a.ID, 1000))
	reread, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.00, reread.Total)
	assert.Equal(t, 10.0, reread.Items[0].Price)
}

func TestCreateOrder_StockExhaustion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Kettlebell", 49.99, 3)
	u := f.customer(t)

	_, err := f.orders.CreateOrder(ctx, request(u.ID, domain.OrderLine{ProductID: p.ID, Quantity: 3}), "")
	require.NoError(t, err)

	got, _ := f.products.GetProduct(ctx, p.ID)
	assert.Equal(t, 0, got.Stock)

	_, err = f.orders.CreateOrder(ctx, request(u.ID, domain.OrderLine{ProductID: p.ID, Quantity: 3}), "")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.EqualError(t, err, "insufficient stock for Kettlebell")

	n, _ := f.store.CountOrders(ctx)
	assert.Equal(t, 1, n)
}

func TestCreateOrder_OverStockLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Mat", 20, 2)
	u := f.customer(t)

	_, err := f.orders.CreateOrder(ctx, request(u.ID, domain.OrderLine{ProductID: p.ID, Quantity: 5}), "")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	got, _ := f.products.GetProduct(ctx, p.ID)
	assert.Equal(t, 2, got.Stock)
	n, _ := f.store.CountOrders(ctx)
	assert.Zero(t, n)
}

func TestCreateOrder_CumulativeQuantityPerProduct(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Rope", 30, 3)
	u := f.customer(t)

	_, err := f.orders.CreateOrder(context.Background(), request(u.ID,
		domain.OrderLine{ProductID: p.ID, Quantity: 2},
		domain.OrderLine{ProductID: p.ID, Quantity: 2},
	), "")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Bar", 15, 5)
	u := f.customer(t)

	_, err := f.orders.CreateOrder(ctx, request(u.ID,
		domain.OrderLine{ProductID: p.ID, Quantity: 1},
		domain.OrderLine{ProductID: "missing-id", Quantity: 1},
	), "")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "missing-id")

	got, _ := f.products.GetProduct(ctx, p.ID)
	assert.Equal(t, 5, got.Stock)
	n, _ := f.store.CountOrders(ctx)
	assert.Zero(t, n)
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Gloves", 19.99, 5)
	u := f.customer(t)

	tests := []struct {
		name string
		req  *domain.CreateOrderRequest
	}{
		{"nil request", nil},
		{"missing user", request("", domain.OrderLine{ProductID: p.ID, Quantity: 1})},
		{"no items", request(u.ID)},
		{"zero quantity", request(u.ID, domain.OrderLine{ProductID: p.ID, Quantity: 0})},
		{"empty product id", request(u.ID, domain.OrderLine{ProductID: " ", Quantity: 1})},
		{"missing address field", &domain.CreateOrderRequest{
			UserID:          u.ID,
			Items:           []domain.OrderLine{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: domain.ShippingAddress{Street: "x", City: "y", State: "z", Country: "US"},
		}},
		{"non-default status", &domain.CreateOrderRequest{
			UserID:          u.ID,
			Items:           []domain.OrderLine{{ProductID: p.ID, Quantity: 1}},
			ShippingAddress: address,
			Status:          domain.StatusDelivered,
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(context.Background(), tc.req, "")
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestCreateOrder_UnknownUser(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "Shorts", 44.99, 5)

	_, err := f.orders.CreateOrder(context.Background(), request("ghost", domain.OrderLine{ProductID: p.ID, Quantity: 1}), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateOrder_IdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Hoodie", 54.99, 10)
	u := f.customer(t)
	req := request(u.ID, domain.OrderLine{ProductID: p.ID, Quantity: 1})

	first, err := f.orders.CreateOrder(ctx, req, "key-1")
	require.NoError(t, err)

	again, err := f.orders.CreateOrder(ctx, req, "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "repeated key returns the original order")

	got, _ := f.products.GetProduct(ctx, p.ID)
	assert.Equal(t, 9, got.Stock)
	n, _ := f.store.CountOrders(ctx)
	assert.Equal(t, 1, n)
}

func TestCreateOrder_KeyStillInFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Tank", 24.99, 10)
	u := f.customer(t)

	ok, err := f.idem.Reserve(ctx, "in-flight")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.orders.CreateOrder(ctx, request(u.ID, domain.OrderLine{ProductID: p.ID, Quantity: 1}), "in-flight")
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	got, _ := f.products.GetProduct(ctx, p.ID)
	assert.Equal(t, 10, got.Stock)
	orderID, err := f.idem.Lookup(ctx, "in-flight")
	require.NoError(t, err)
	assert.Empty(t, orderID, "the pending reservation is left to its owner")
}

func TestCreateOrder_FailedAttemptReleasesKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Creatine", 24.99, 1)
	u := f.customer(t)

	_, err := f.orders.CreateOrder(ctx, request(u.ID, domain.OrderLine{ProductID: p.ID, Quantity: 2}), "retry-me")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = f.orders.CreateOrder(ctx, request(u.ID, domain.OrderLine{ProductID: p.ID, Quantity: 1}), "retry-me")
	assert.NoError(t, err)
}

func TestCreateOrder_ConcurrentCheckouts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Dumbbells", 299.99, 4)
	u := f.customer(t)

	var wg sync.WaitGroup
	var placed int32
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.orders.CreateOrder(ctx, request(u.ID, domain.OrderLine{ProductID: p.ID, Quantity: 1}), ""); err == nil {
				atomic.AddInt32(&placed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4), placed)
	got, _ := f.products.GetProduct(ctx, p.ID)
	assert.Equal(t, 0, got.Stock)
}

func TestUpdateOrderStatus_Transitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Roller", 34.99, 5)
	u := f.customer(t)

	order, err := f.orders.CreateOrder(ctx, request(u.ID, domain.OrderLine{ProductID: p.ID, Quantity: 2}), "")
	require.NoError(t, err)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, domain.StatusDelivered)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, "lost")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	shipped, err := f.orders.UpdateOrderStatus(ctx, order.ID, domain.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, shipped.Status)

	delivered, err := f.orders.UpdateOrderStatus(ctx, order.ID, domain.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, delivered.Status)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.orders.UpdateOrderStatus(ctx, "nope", domain.StatusShipped)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateOrderStatus_CancelRestocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Bands", 79.99, 5)
	u := f.customer(t)

	order, err := f.orders.CreateOrder(ctx, request(u.ID, domain.OrderLine{ProductID: p.ID, Quantity: 3}), "")
	require.NoError(t, err)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, domain.StatusCancelled)
	require.NoError(t, err)

	got, _ := f.products.GetProduct(ctx, p.ID)
	assert.Equal(t, 5, got.Stock)
}

func TestListOrders_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Tee", 29.99, 10)
	u := f.customer(t)

	first, err := f.orders.CreateOrder(ctx, request(u.ID, domain.OrderLine{ProductID: p.ID, Quantity: 1}), "")
	require.NoError(t, err)
	second, err := f.orders.CreateOrder(ctx, request(u.ID, domain.OrderLine{ProductID: p.ID, Quantity: 1}), "")
	require.NoError(t, err)
	_, err = f.orders.UpdateOrderStatus(ctx, first.ID, domain.StatusShipped)
	require.NoError(t, err)

	all, err := f.orders.ListOrders(ctx, domain.OrderFilter{UserID: u.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	shipped, err := f.orders.ListOrders(ctx, domain.OrderFilter{Status: domain.StatusShipped})
	require.NoError(t, err)
	require.Len(t, shipped, 1)
	assert.Equal(t, first.ID, shipped[0].ID)

	_, err = f.orders.ListOrders(ctx, domain.OrderFilter{Status: "weird"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFindOrCreate_ReusesExistingCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, created, err := f.users.FindOrCreate(ctx, domain.CreateUserRequest{Email: "Jane@Example.com", Name: "Jane"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "jane@example.com", first.Email)
	assert.Equal(t, domain.RoleCustomer, first.Role)

	second, created, err := f.users.FindOrCreate(ctx, domain.CreateUserRequest{Email: " jane@example.COM ", Name: "Jane Again"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	n, _ := f.store.CountUsers(ctx)
	assert.Equal(t, 1, n)
}

func TestFindOrCreate_ConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, _, err := f.users.FindOrCreate(ctx, domain.CreateUserRequest{Email: "race@example.com", Name: "Racer"})
			if assert.NoError(t, err) {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	n, _ := f.store.CountUsers(ctx)
	assert.Equal(t, 1, n)
}

func TestFindOrCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.users.FindOrCreate(ctx, domain.CreateUserRequest{Email: "", Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = f.users.FindOrCreate(ctx, domain.CreateUserRequest{Email: "x@y.z", Name: "x", Role: "root"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInitialize_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.seeder.Initialize(ctx)
	require.NoError(t, err)
	assert.False(t, first.AlreadyInitialized)
	assert.Equal(t, 20, first.Products)
	assert.Equal(t, 8, first.Users)
	assert.Equal(t, 3, first.Orders)

	second, err := f.seeder.Initialize(ctx)
	require.NoError(t, err)
	assert.True(t, second.AlreadyInitialized)
	assert.Equal(t, 20, second.Products)
	assert.Equal(t, 3, second.Orders)

	orders, err := f.orders.ListOrders(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, domain.StatusProcessing, orders[0].Status)

	// Seed orders do not consume stock.
	p, err := f.store.GetProductByName(ctx, "Premium Training Program")
	require.NoError(t, err)
	assert.Equal(t, 50, p.Stock)

	var delivered *domain.Order
	for i := range orders {
		if orders[i].Status == domain.StatusDelivered {
			delivered = &orders[i]
		}
	}
	require.NotNil(t, delivered)
	assert.Equal(t, 299.97, delivered.Total)
}

type failingOrders struct {
	domain.OrderRepository
	inserts   int
	failAfter int
}

func (f *failingOrders) InsertOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	f.inserts++
	if f.inserts > f.failAfter {
		return nil, errors.New("connection reset")
	}
	return f.OrderRepository.InsertOrder(ctx, order)
}

func TestInitialize_ResumesAfterPartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	catalog, err := seed.Load()
	require.NoError(t, err)

	broken := NewSeedUseCase(catalog, f.store, f.store, &failingOrders{OrderRepository: f.store, failAfter: 1}, logger)
	_, err = broken.Initialize(ctx)
	require.Error(t, err)
	_, err = f.store.GetUserByEmail(ctx, catalog.AdminEmail)
	require.ErrorIs(t, err, domain.ErrNotFound, "admin marker is not written by a failed run")

	result, err := f.seeder.Initialize(ctx)
	require.NoError(t, err)
	assert.False(t, result.AlreadyInitialized)
	assert.Equal(t, 20, result.Products)
	assert.Equal(t, 8, result.Users)
	assert.Equal(t, 3, result.Orders)

	n, _ := f.store.CountOrders(ctx)
	assert.Equal(t, 3, n, "the sample order from the failed run is not duplicated")

	again, err := f.seeder.Initialize(ctx)
	require.NoError(t, err)
	assert.True(t, again.AlreadyInitialized)
}

func TestCancelSeededOrder_KeepsStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.seeder.Initialize(ctx)
	require.NoError(t, err)

	for _, status := range []domain.OrderStatus{domain.StatusProcessing, domain.StatusShipped} {
		orders, err := f.orders.ListOrders(ctx, domain.OrderFilter{Status: status})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		sample := orders[0]

		before := make(map[string]int, len(sample.Items))
		for _, item := range sample.Items {
			p, err := f.products.GetProduct(ctx, item.ProductID)
			require.NoError(t, err)
			before[item.ProductID] = p.Stock
		}

		_, err = f.orders.UpdateOrderStatus(ctx, sample.ID, domain.StatusCancelled)
		require.NoError(t, err)

		for id, stock := range before {
			p, err := f.products.GetProduct(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, stock, p.Stock, "%s sample never consumed stock for %s", status, p.Name)
		}
	}
}

func TestListProducts_Featured(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.seeder.Initialize(ctx)
	require.NoError(t, err)

	featured := true
	products, err := f.products.ListProducts(ctx, domain.ProductFilter{Featured: &featured})
	require.NoError(t, err)
	assert.Len(t, products, 5)

	nutrition, err := f.products.ListProducts(ctx, domain.ProductFilter{Category: "nutrition"})
	require.NoError(t, err)
	assert.Len(t, nutrition, 6)
}
