package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/MikeMC777/mia-shop/internal/cart"
	"github.com/MikeMC777/mia-shop/internal/db"
	"github.com/MikeMC777/mia-shop/internal/order"
	"github.com/MikeMC777/mia-shop/internal/product"
	"github.com/MikeMC777/mia-shop/internal/user"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in -short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(pool))
	// a second run is a no-op
	require.NoError(t, db.Migrate(pool))
	return pool
}

func seedUser(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	u := &user.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", PasswordHash: "x", IsActive: true}
	require.NoError(t, user.NewPGRepo(pool).Create(context.Background(), u))
	return u.ID
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, price string, stock int) *product.Product {
	t.Helper()
	id := uuid.NewString()
	p := &product.Product{
		ID:            id,
		Name:          "product " + id[:8],
		Slug:          "p-" + id,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		SKU:           "SKU-" + id,
		IsActive:      true,
	}
	require.NoError(t, product.NewPGRepo(pool).Create(context.Background(), p))
	return p
}

func seedLine(t *testing.T, pool *pgxpool.Pool, userID, productID string, qty int) {
	t.Helper()
	require.NoError(t, cart.NewPGRepo(pool).Create(context.Background(), &cart.Line{
		ID: uuid.NewString(), UserID: userID, ProductID: productID, Quantity: qty,
	}))
}

func stockOf(t *testing.T, pool *pgxpool.Pool, id string) int {
	t.Helper()
	p, err := product.NewPGRepo(pool).GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func TestPGStore_CreateReadAndPay(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := order.NewPGStore(pool)
	svc := order.NewService(store, nil, zap.NewNop())

	uid := seedUser(t, pool)
	p := seedProduct(t, pool, "19.99", 5)
	seedLine(t, pool, uid, p.ID, 3)

	req := shipping()
	req.Notes = strp("ring twice")
	o, skipped, err := svc.CreateFromCart(ctx, uid, req)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("59.97")))
	assert.Equal(t, 2, stockOf(t, pool, p.ID))

	lines, err := cart.NewPGRepo(pool).ListByUser(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, lines)

	got, err := store.GetByNumber(ctx, o.Number)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, "ring twice", *got.Notes)
	assert.Equal(t, "HCMC", got.Shipping.City)
	assert.Nil(t, got.Shipping.PostalCode)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, 3, got.Items[0].Quantity)

	list, total, err := store.ListByUser(ctx, uid, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Items, 1)

	require.NoError(t, store.UpdateStatus(ctx, o.ID, order.StatusConfirmed, ""))
	got, err = store.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, got.Status)
	assert.Equal(t, order.PaymentPending, got.PaymentStatus)

	changed, err := store.MarkPaid(ctx, o.Number)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = store.MarkPaid(ctx, o.Number)
	require.NoError(t, err)
	assert.False(t, changed)
	_, err = store.MarkPaid(ctx, "ORD-FFFFFFFF")
	assert.ErrorIs(t, err, order.ErrNotFound)
	assert.ErrorIs(t, store.UpdateStatus(ctx, uuid.NewString(), order.StatusShipped, ""), order.ErrNotFound)
}

func TestPGStore_NumberCollisionRetries(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	svc := order.NewService(order.NewPGStore(pool), nil, zap.NewNop())
	p := seedProduct(t, pool, "1.00", 10)

	first := seedUser(t, pool)
	seedLine(t, pool, first, p.ID, 1)
	svc.WithNumberGenerator(func() string { return "ORD-12345678" })
	_, _, err := svc.CreateFromCart(ctx, first, shipping())
	require.NoError(t, err)

	numbers := []string{"ORD-12345678", "ORD-87654321"}
	svc.WithNumberGenerator(func() string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	})
	second := seedUser(t, pool)
	seedLine(t, pool, second, p.ID, 1)
	o, _, err := svc.CreateFromCart(ctx, second, shipping())
	require.NoError(t, err)
	assert.Equal(t, "ORD-87654321", o.Number)
	assert.Equal(t, 8, stockOf(t, pool, p.ID))
}

func TestPGStore_InsufficientStockRollsBack(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	svc := order.NewService(order.NewPGStore(pool), nil, zap.NewNop())

	uid := seedUser(t, pool)
	plenty := seedProduct(t, pool, "2.00", 10)
	scarce := seedProduct(t, pool, "3.00", 1)
	seedLine(t, pool, uid, plenty.ID, 4)
	seedLine(t, pool, uid, scarce.ID, 2)

	_, _, err := svc.CreateFromCart(ctx, uid, shipping())
	var stockErr *order.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, scarce.ID, stockErr.ProductID)
	assert.Equal(t, 10, stockOf(t, pool, plenty.ID))
	assert.Equal(t, 1, stockOf(t, pool, scarce.ID))
}

func TestPGStore_ConcurrentOrdersNeverOversell(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	svc := order.NewService(order.NewPGStore(pool), nil, zap.NewNop())
	p := seedProduct(t, pool, "9.99", 1)

	const buyers = 6
	users := make([]string, buyers)
	for i := range users {
		users[i] = seedUser(t, pool)
		seedLine(t, pool, users[i], p.ID, 1)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	start := make(chan struct{})
	for _, u := range users {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			<-start
			_, _, err := svc.CreateFromCart(ctx, u, shipping())
			var stockErr *order.InsufficientStockError
			if err != nil && !errors.As(err, &stockErr) {
				t.Errorf("unexpected error: %v", err)
			}
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(u)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 0, stockOf(t, pool, p.ID))
}

func TestPGStore_OppositeCartOrdersDoNotDeadlock(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	svc := order.NewService(order.NewPGStore(pool), nil, zap.NewNop())

	const rounds = 10
	for i := 0; i < rounds; i++ {
		p1 := seedProduct(t, pool, "4.00", 2)
		p2 := seedProduct(t, pool, "6.00", 2)
		a, b := seedUser(t, pool), seedUser(t, pool)
		seedLine(t, pool, a, p1.ID, 1)
		seedLine(t, pool, a, p2.ID, 1)
		seedLine(t, pool, b, p2.ID, 1)
		seedLine(t, pool, b, p1.ID, 1)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})
		for j, u := range []string{a, b} {
			wg.Add(1)
			go func(j int, u string) {
				defer wg.Done()
				<-start
				_, _, errs[j] = svc.CreateFromCart(ctx, u, shipping())
			}(j, u)
		}
		close(start)
		wg.Wait()

		require.NoError(t, errs[0], "round %d", i)
		require.NoError(t, errs[1], "round %d", i)
		assert.Equal(t, 0, stockOf(t, pool, p1.ID))
		assert.Equal(t, 0, stockOf(t, pool, p2.ID))
	}
}

func TestPGRepos_MalformedIDIsNotFound(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	_, err := product.NewPGRepo(pool).GetByID(ctx, "abc")
	assert.ErrorIs(t, err, product.ErrNotFound)
	_, err = order.NewPGStore(pool).GetByID(ctx, "abc")
	assert.ErrorIs(t, err, order.ErrNotFound)
	_, err = cart.NewPGRepo(pool).GetByID(ctx, "abc")
	assert.ErrorIs(t, err, cart.ErrNotFound)
	_, err = cart.NewPGRepo(pool).GetByUserAndProduct(ctx, uuid.NewString(), "abc")
	assert.ErrorIs(t, err, cart.ErrNotFound)
	assert.ErrorIs(t, order.NewPGStore(pool).UpdateStatus(ctx, "abc", order.StatusShipped, ""), order.ErrNotFound)
}
