package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated  = "OrderCreated"
	EventStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type EventItem struct {
	ProductID     string `json:"product_id"`
	Qty           int    `json:"qty"`
	PriceCents    int    `json:"price_cents"`
	SelectedColor string `json:"selected_color,omitempty"`
	SelectedSize  string `json:"selected_size,omitempty"`
}

type OrderCreatedPayload struct {
	OrderID       string      `json:"order_id"`
	UserID        string      `json:"user_id,omitempty"`
	Status        Status      `json:"status"`
	Email         string      `json:"email,omitempty"`
	Phone         string      `json:"phone,omitempty"`
	CustomerName  string      `json:"customer_name,omitempty"`
	Items         []EventItem `json:"items"`
	NetTotalCents int         `json:"net_total_cents"`
	PaymentMethod string      `json:"payment_method"`
}

type StatusChangedPayload struct {
	OrderID        string `json:"order_id"`
	PreviousStatus Status `json:"previous_status"`
	Status         Status `json:"status"`
	StockDeducted  bool   `json:"stock_deducted"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
}
