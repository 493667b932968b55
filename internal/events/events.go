// Package events publishes order lifecycle events to Kafka.
package events

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/plantshop/internal/domain/order"
)

const (
	TypeOrderPlaced        = "OrderPlaced"
	TypeOrderStatusChanged = "OrderStatusChanged"

	version  = 1
	producer = "plantshop-api"
)

// Envelope wraps every event written to the topic.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// OrderLine is one purchased product in an OrderPlaced payload.
type OrderLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// OrderPlacedPayload is emitted once per committed order.
type OrderPlacedPayload struct {
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	TrackingNumber string          `json:"tracking_number"`
	Total          decimal.Decimal `json:"total"`
	Items          []OrderLine     `json:"items"`
}

// OrderStatusChangedPayload is emitted when an order moves to a new status.
type OrderStatusChangedPayload struct {
	OrderID        string `json:"order_id"`
	UserID         string `json:"user_id"`
	TrackingNumber string `json:"tracking_number"`
	From           string `json:"from"`
	To             string `json:"to"`
}

func placedPayload(o *order.Order) OrderPlacedPayload {
	items := make([]OrderLine, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderLine{ProductID: it.ProductID, Name: it.Name, Price: it.Price, Quantity: it.Quantity}
	}
	return OrderPlacedPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		TrackingNumber: o.TrackingNumber,
		Total:          o.Total,
		Items:          items,
	}
}
