package handler

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/plantshop/internal/domain/cart"
	"github.com/xenking/plantshop/internal/domain/order"
	"github.com/xenking/plantshop/internal/domain/product"
)

// money renders an amount as a JSON number with two decimals.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type productView struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Rating    json.Number `json:"rating"`
	Seller    string      `json:"seller"`
	Category  string      `json:"category"`
	Image     string      `json:"image"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func viewProduct(p product.Product) productView {
	return productView{
		ID:        p.ID,
		Name:      p.Name,
		Price:     money(p.Price),
		Rating:    json.Number(p.Rating.String()),
		Seller:    p.Seller,
		Category:  string(p.Category),
		Image:     p.Image,
		UpdatedAt: p.UpdatedAt,
	}
}

type priceChangeView struct {
	ProductID string      `json:"productId"`
	OldPrice  json.Number `json:"oldPrice"`
	NewPrice  json.Number `json:"newPrice"`
	ChangedBy string      `json:"changedBy"`
	ChangedAt time.Time   `json:"changedAt"`
}

type cartLineView struct {
	ID        string      `json:"id"`
	ProductID string      `json:"productId"`
	Quantity  int         `json:"quantity"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Seller    string      `json:"seller"`
	Category  string      `json:"category"`
	Image     string      `json:"image"`
}

func viewCartLine(l cart.Line) cartLineView {
	return cartLineView{
		ID:        l.ID,
		ProductID: l.ProductID,
		Quantity:  l.Quantity,
		Name:      l.Name,
		Price:     money(l.Price),
		Seller:    l.Seller,
		Category:  string(l.Category),
		Image:     l.Image,
	}
}

type orderLineView struct {
	ID        string      `json:"id"`
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Quantity  int         `json:"quantity"`
	Image     string      `json:"image"`
}

type orderView struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	UserEmail       string          `json:"userEmail"`
	UserName        *string         `json:"userName"`
	Items           []orderLineView `json:"items"`
	Total           json.Number     `json:"total"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	DeliveryAddress string          `json:"deliveryAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	TrackingNumber  string          `json:"trackingNumber"`
}

func viewOrder(o order.Order) orderView {
	v := orderView{
		ID:              o.ID,
		UserID:          o.UserID,
		UserEmail:       o.UserEmail,
		Items:           make([]orderLineView, len(o.Items)),
		Total:           money(o.Total),
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
		DeliveryAddress: o.DeliveryAddress,
		PaymentMethod:   o.PaymentMethod,
		TrackingNumber:  o.TrackingNumber,
	}
	if o.UserName != "" {
		name := o.UserName
		v.UserName = &name
	}
	for i, it := range o.Items {
		v.Items[i] = orderLineView{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     money(it.Price),
			Quantity:  it.Quantity,
			Image:     it.Image,
		}
	}
	return v
}

func viewOrders(orders []order.Order) []orderView {
	out := make([]orderView, len(orders))
	for i, o := range orders {
		out[i] = viewOrder(o)
	}
	return out
}
