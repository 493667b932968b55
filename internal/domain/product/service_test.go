package product_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/storage/memory"
)

func ptr[T any](v T) *T { return &v }

func validRequest() product.CreateRequest {
	return product.CreateRequest{
		Name:     "Snake Plant",
		Price:    ptr(decimal.RequireFromString("24.99")),
		Seller:   "Leafy",
		Category: product.CategoryLowLight,
		Image:    "snake.jpg",
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc := product.NewService(memory.New().Products())

	p, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "4.5", p.Rating.String())

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Snake Plant", got.Name)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*product.CreateRequest)
		want   error
	}{
		{"no name", func(r *product.CreateRequest) { r.Name = "  " }, product.ErrMissingFields},
		{"no price", func(r *product.CreateRequest) { r.Price = nil }, product.ErrMissingFields},
		{"no seller", func(r *product.CreateRequest) { r.Seller = "" }, product.ErrMissingFields},
		{"no image", func(r *product.CreateRequest) { r.Image = "" }, product.ErrMissingFields},
		{"negative price", func(r *product.CreateRequest) { r.Price = ptr(decimal.NewFromInt(-1)) }, product.ErrInvalidPrice},
		{"price with three decimals", func(r *product.CreateRequest) { r.Price = ptr(decimal.RequireFromString("12.345")) }, product.ErrInvalidPrice},
		{"price too large", func(r *product.CreateRequest) { r.Price = ptr(decimal.RequireFromString("10000000000")) }, product.ErrInvalidPrice},
		{"rating with three decimals", func(r *product.CreateRequest) { r.Rating = ptr(decimal.RequireFromString("4.125")) }, product.ErrInvalidRating},
		{"rating too high", func(r *product.CreateRequest) { r.Rating = ptr(decimal.RequireFromString("5.1")) }, product.ErrInvalidRating},
		{"bad category", func(r *product.CreateRequest) { r.Category = "Cacti" }, product.ErrInvalidCategory},
	}
	svc := product.NewService(memory.New().Products())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := svc.Create(context.Background(), req)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdate_RecordsPriceHistory(t *testing.T) {
	ctx := context.Background()
	svc := product.NewService(memory.New().Products())
	p, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	_, err = svc.Update(ctx, p.ID, product.Patch{Name: ptr("Sansevieria")}, "admin@plants.test")
	require.NoError(t, err)
	h, err := svc.PriceHistory(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, h, "rename does not touch the price")

	_, err = svc.Update(ctx, p.ID, product.Patch{Price: ptr(decimal.NewFromInt(30))}, "admin@plants.test")
	require.NoError(t, err)
	_, err = svc.Update(ctx, p.ID, product.Patch{Price: ptr(decimal.NewFromInt(30))}, "")
	require.NoError(t, err)
	updated, err := svc.Update(ctx, p.ID, product.Patch{Price: ptr(decimal.NewFromInt(28))}, "")
	require.NoError(t, err)
	assert.Equal(t, "Sansevieria", updated.Name)

	h, err = svc.PriceHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.True(t, decimal.NewFromInt(30).Equal(h[0].OldPrice))
	assert.True(t, decimal.NewFromInt(28).Equal(h[0].NewPrice))
	assert.Equal(t, "admin", h[0].ChangedBy)
	assert.True(t, decimal.RequireFromString("24.99").Equal(h[1].OldPrice))
	assert.Equal(t, "admin@plants.test", h[1].ChangedBy)
}

func TestUpdate_Errors(t *testing.T) {
	ctx := context.Background()
	svc := product.NewService(memory.New().Products())

	_, err := svc.Update(ctx, "x", product.Patch{}, "a")
	require.ErrorIs(t, err, product.ErrNoUpdates)
	_, err = svc.Update(ctx, "x", product.Patch{Category: ptr(product.Category("Cacti"))}, "a")
	require.ErrorIs(t, err, product.ErrInvalidCategory)
	_, err = svc.Update(ctx, "x", product.Patch{Price: ptr(decimal.RequireFromString("0.001"))}, "a")
	require.ErrorIs(t, err, product.ErrInvalidPrice)
	_, err = svc.Update(ctx, "x", product.Patch{Name: ptr("n")}, "a")
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestCreate_PriceTrailingZeros(t *testing.T) {
	req := validRequest()
	req.Price = ptr(decimal.RequireFromString("19.9900"))
	p, err := product.NewService(memory.New().Products()).Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("19.99").Equal(p.Price))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc := product.NewService(memory.New().Products())
	p, err := svc.Create(ctx, validRequest())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	require.ErrorIs(t, svc.Delete(ctx, p.ID), product.ErrNotFound)
	_, err = svc.Get(ctx, p.ID)
	require.ErrorIs(t, err, product.ErrNotFound)
	_, err = svc.PriceHistory(ctx, p.ID)
	require.ErrorIs(t, err, product.ErrNotFound)
}
