//go:build integration

package redis_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/plantshop/internal/domain/order"
	"github.com/xenking/plantshop/internal/storage/redis"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestOrderCache(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(startRedis(t))
	t.Cleanup(func() { _ = client.Close() })

	cache := redis.NewOrderCache(client, time.Minute)
	require.NoError(t, cache.Ping(ctx))

	miss, err := cache.Get(ctx, "DP000000000000")
	require.NoError(t, err)
	assert.Nil(t, miss)

	o := &order.Order{
		ID:             "o-1",
		UserID:         "u-1",
		Status:         order.StatusProcessing,
		Total:          decimal.RequireFromString("250.00"),
		TrackingNumber: "DP123456781234",
		Items: []order.Line{
			{ID: "l-1", ProductID: "1", Name: "Fern", Price: decimal.RequireFromString("125"), Quantity: 2},
		},
	}
	require.NoError(t, cache.Set(ctx, o))

	got, err := cache.Get(ctx, o.TrackingNumber)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, o.ID, got.ID)
	assert.True(t, o.Total.Equal(got.Total))
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	shipped := *o
	shipped.Status = order.StatusShipped
	require.NoError(t, cache.Add(ctx, &shipped))
	got, err = cache.Get(ctx, o.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, got.Status, "Add keeps the existing entry")

	require.NoError(t, cache.Set(ctx, &shipped))
	got, err = cache.Get(ctx, o.TrackingNumber)
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, got.Status)

	require.NoError(t, cache.Delete(ctx, o.TrackingNumber))
	got, err = cache.Get(ctx, o.TrackingNumber)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Add(ctx, o))
	got, err = cache.Get(ctx, o.TrackingNumber)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, order.StatusProcessing, got.Status)
}
