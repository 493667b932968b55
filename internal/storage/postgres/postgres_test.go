//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/plantshop/internal/domain/cart"
	"github.com/xenking/plantshop/internal/domain/order"
	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/domain/user"
	"github.com/xenking/plantshop/internal/storage/postgres"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "shop",
				"POSTGRES_PASSWORD": "shop",
				"POSTGRES_DB":       "shop",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		return 1
	}
	defer func() { _ = c.Terminate(ctx) }()

	host, err := c.Host(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "container host: %v\n", err)
		return 1
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		fmt.Fprintf(os.Stderr, "container port: %v\n", err)
		return 1
	}

	dsn := fmt.Sprintf("postgres://shop:shop@%s:%s/shop?sslmode=disable", host, port.Port())
	pool, err = postgres.NewPool(ctx, dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		return 1
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		return 1
	}
	// Applying the schema twice must be harmless.
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "migrate again: %v\n", err)
		return 1
	}

	return m.Run()
}

type actor struct {
	id    string
	admin bool
}

func (a actor) Subject() string { return a.id }
func (a actor) IsAdmin() bool   { return a.admin }

func newUser(t *testing.T) *user.User {
	t.Helper()
	u := &user.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@plants.test",
		PasswordHash: "hash",
		Name:         "Fern",
		Role:         user.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, postgres.NewUserRepository(pool).Create(context.Background(), u))
	return u
}

func newProduct(t *testing.T, price string) *product.Product {
	t.Helper()
	p := &product.Product{
		ID:        uuid.NewString(),
		Name:      "Monstera",
		Price:     decimal.RequireFromString(price),
		Rating:    decimal.RequireFromString("4.5"),
		Seller:    "Green Co",
		Category:  product.CategoryTropical,
		Image:     "monstera.jpg",
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, postgres.NewProductRepository(pool).Create(context.Background(), p))
	return p
}

func addToCart(t *testing.T, userID, productID string, qty int) {
	t.Helper()
	err := postgres.NewCartRepository(pool).Add(context.Background(), cart.Line{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
		AddedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(pool)
	u := newUser(t)

	got, err := repo.GetByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Fern", got.Name)
	assert.Equal(t, user.RoleUser, got.Role)

	dup := *u
	dup.ID = uuid.NewString()
	assert.ErrorIs(t, repo.Create(ctx, &dup), user.ErrEmailTaken)

	require.NoError(t, repo.SetRole(ctx, u.ID, user.RoleAdmin))
	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, got.Role)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestProductRepository_UpdateRecordsPriceHistory(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewProductRepository(pool)
	p := newProduct(t, "20.00")

	price := decimal.RequireFromString("25.00")
	name := "Monstera Deliciosa"
	updated, err := repo.Update(ctx, p.ID, product.Patch{Price: &price, Name: &name}, "admin@plants.test")
	require.NoError(t, err)
	assert.True(t, price.Equal(updated.Price))
	assert.Equal(t, name, updated.Name)

	// Same price again records nothing.
	_, err = repo.Update(ctx, p.ID, product.Patch{Price: &price}, "admin@plants.test")
	require.NoError(t, err)

	history, err := repo.PriceHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, decimal.RequireFromString("20").Equal(history[0].OldPrice))
	assert.True(t, price.Equal(history[0].NewPrice))
	assert.Equal(t, "admin@plants.test", history[0].ChangedBy)

	_, err = repo.Update(ctx, "missing", product.Patch{Price: &price}, "admin")
	assert.ErrorIs(t, err, product.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, p.ID))
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), product.ErrNotFound)
}

func TestCartRepository(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewCartRepository(pool)
	u := newUser(t)
	p := newProduct(t, "12.50")

	addToCart(t, u.ID, p.ID, 2)
	addToCart(t, u.ID, p.ID, 3)

	lines, err := repo.Lines(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, "Monstera", lines[0].Name)
	assert.True(t, decimal.RequireFromString("12.50").Equal(lines[0].Price))

	err = repo.Add(ctx, cart.Line{ID: uuid.NewString(), UserID: u.ID, ProductID: "missing", Quantity: 1, AddedAt: time.Now()})
	assert.ErrorIs(t, err, product.ErrNotFound)

	err = repo.Add(ctx, cart.Line{ID: uuid.NewString(), UserID: u.ID, ProductID: p.ID, Quantity: cart.MaxQuantity, AddedAt: time.Now()})
	assert.ErrorIs(t, err, cart.ErrQuantityTooLarge)

	other := newUser(t)
	assert.ErrorIs(t, repo.SetQuantity(ctx, other.ID, lines[0].ID, 1), cart.ErrLineNotFound)
	require.NoError(t, repo.SetQuantity(ctx, u.ID, lines[0].ID, 1))
	assert.ErrorIs(t, repo.Remove(ctx, other.ID, lines[0].ID), cart.ErrLineNotFound)
	require.NoError(t, repo.Remove(ctx, u.ID, lines[0].ID))

	lines, err = repo.Lines(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestOrderRepository_PlaceAndLifecycle(t *testing.T) {
	ctx := context.Background()
	orders := postgres.NewOrderRepository(pool)
	svc := order.NewService(orders)

	u := newUser(t)
	a := newProduct(t, "100.00")
	b := newProduct(t, "50.00")
	addToCart(t, u.ID, a.ID, 2)
	addToCart(t, u.ID, b.ID, 1)

	placed, err := svc.Place(ctx, actor{id: u.ID}, order.PlaceRequest{DeliveryAddress: "1 Leaf St", PaymentMethod: "card"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("250").Equal(placed.Total))
	assert.Equal(t, order.StatusProcessing, placed.Status)
	assert.Equal(t, u.Email, placed.UserEmail)

	lines, err := postgres.NewCartRepository(pool).Lines(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	// Later catalog edits never reach the order.
	price := decimal.RequireFromString("1.00")
	_, err = postgres.NewProductRepository(pool).Update(ctx, a.ID, product.Patch{Price: &price}, "admin")
	require.NoError(t, err)

	own, err := orders.List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Len(t, own[0].Items, 2)
	assert.True(t, decimal.RequireFromString("250").Equal(own[0].Total))
	assert.Equal(t, a.ID, own[0].Items[0].ProductID)
	assert.True(t, decimal.RequireFromString("100").Equal(own[0].Items[0].Price))

	admin := actor{id: "admin", admin: true}
	shipped, err := svc.UpdateStatus(ctx, admin, placed.ID, "Shipped")
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, shipped.Status)

	_, err = svc.UpdateStatus(ctx, admin, placed.ID, "Processing")
	assert.ErrorIs(t, err, order.ErrInvalidTransition)

	tracked, err := orders.GetByTracking(ctx, placed.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, tracked.Status)
	assert.Len(t, tracked.Items, 2)

	_, err = svc.UpdateStatus(ctx, admin, "missing", "Shipped")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepository_ConcurrentPlaceCreatesOneOrder(t *testing.T) {
	ctx := context.Background()
	orders := postgres.NewOrderRepository(pool)
	svc := order.NewService(orders)

	u := newUser(t)
	p := newProduct(t, "10.00")
	addToCart(t, u.ID, p.ID, 1)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		empties   int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Place(ctx, actor{id: u.ID}, order.PlaceRequest{DeliveryAddress: "x", PaymentMethod: "y"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, order.ErrEmptyCart):
				empties++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, empties)

	own, err := orders.List(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, own, 1)
}

func TestOrderRepository_TrackingCollisionRollsBack(t *testing.T) {
	ctx := context.Background()
	orders := postgres.NewOrderRepository(pool)

	u := newUser(t)
	p := newProduct(t, "10.00")
	addToCart(t, u.ID, p.ID, 1)

	insert := func(tracking string) error {
		return orders.WithinTx(ctx, func(ctx context.Context, tx order.Tx) error {
			c, err := tx.LockCustomer(ctx, u.ID)
			if err != nil {
				return err
			}
			if err := tx.Insert(ctx, &order.Order{
				ID:              uuid.NewString(),
				UserID:          c.ID,
				UserEmail:       c.Email,
				Status:          order.StatusProcessing,
				Total:           decimal.NewFromInt(10),
				CreatedAt:       time.Now().UTC(),
				DeliveryAddress: "x",
				PaymentMethod:   "y",
				TrackingNumber:  tracking,
			}); err != nil {
				return err
			}
			_, err = tx.ClearCart(ctx, u.ID)
			return err
		})
	}

	tracking := "DP" + fmt.Sprint(time.Now().UnixNano())[:12]
	require.NoError(t, insert(tracking))

	addToCart(t, u.ID, p.ID, 1)
	assert.ErrorIs(t, insert(tracking), order.ErrTrackingConflict)

	// The failed unit left the cart alone.
	lines, err := postgres.NewCartRepository(pool).Lines(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}
