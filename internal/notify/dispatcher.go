package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/shopcore/storefront-orders/internal/kafka"
	"github.com/shopcore/storefront-orders/internal/orders"
)

// KafkaDispatcher publishes order lifecycle events as enveloped kafka
// messages, one topic per event kind. It implements orders.Notifier.
type KafkaDispatcher struct {
	CreatedProducer *kafkax.Producer // order.created
	ChangedProducer *kafkax.Producer // order.status.changed
	Service         string
}

var _ orders.Notifier = (*KafkaDispatcher)(nil)

func (d *KafkaDispatcher) OrderCreated(_ context.Context, o orders.Order, items []orders.OrderItem) error {
	evItems := make([]orders.EventItem, 0, len(items))
	for _, it := range items {
		evItems = append(evItems, orders.EventItem{
			ProductID:     it.ProductID,
			Qty:           it.Qty,
			PriceCents:    it.PriceCents,
			SelectedColor: it.SelectedColor,
			SelectedSize:  it.SelectedSize,
		})
	}
	d.publish(d.CreatedProducer, orders.EventOrderCreated, o.ID, orders.OrderCreatedPayload{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		Email:         o.Email,
		Phone:         o.Phone,
		CustomerName:  o.CustomerName,
		Items:         evItems,
		NetTotalCents: o.NetTotalCents,
		PaymentMethod: o.PaymentMethod,
	})
	return nil
}

func (d *KafkaDispatcher) StatusChanged(_ context.Context, o orders.Order, previous orders.Status) error {
	d.publish(d.ChangedProducer, orders.EventStatusChanged, o.ID, orders.StatusChangedPayload{
		OrderID:        o.ID,
		PreviousStatus: previous,
		Status:         o.Status,
		StockDeducted:  o.StockDeducted,
		Email:          o.Email,
		Phone:          o.Phone,
	})
	return nil
}

func (d *KafkaDispatcher) publish(p *kafkax.Producer, eventType, orderID string, payload any) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      d.Service,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
