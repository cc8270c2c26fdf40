package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/shopcore/storefront-orders/internal/kafka"
	"github.com/shopcore/storefront-orders/internal/orders"
	"github.com/shopcore/storefront-orders/internal/redisx"
)

// Sender delivers a rendered notification to the customer. The real
// transport (email, SMS) lives outside this service; LogSender stands in
// where none is configured.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

type LogSender struct{ Log *zap.Logger }

func (s *LogSender) Send(_ context.Context, recipient, subject, body string) error {
	s.Log.Info("notification delivered",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

// Worker consumes order events and delivers customer notifications.
// Delivery is deduplicated by event id in redis so a redelivered kafka
// message never double-notifies.
type Worker struct {
	Redis  *redis.Client
	Sender Sender
	Log    *zap.Logger
}

// HandleEvent is installed as the consumer handler for both order topics.
func (w *Worker) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	dkey := fmt.Sprintf(redisx.KeyNotifyDedup, env.EventID)
	if seen, _ := redisx.Exists(ctx, w.Redis, dkey); seen {
		return nil
	}

	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := w.Sender.Send(ctx, recipient(p.Email, p.Phone),
			"Your order is placed",
			fmt.Sprintf("Order %s received, status %s.", p.OrderID, p.Status)); err != nil {
			return err
		}
	case orders.EventStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.StatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		if p.Status == p.PreviousStatus {
			break // re-applied status, nothing worth telling the customer
		}
		if err := w.Sender.Send(ctx, recipient(p.Email, p.Phone),
			"Your order status changed",
			fmt.Sprintf("Order %s moved from %s to %s.", p.OrderID, p.PreviousStatus, p.Status)); err != nil {
			return err
		}
	default:
		w.Log.Debug("ignoring event", zap.String("event_type", env.EventType))
	}

	return w.Redis.Set(ctx, dkey, "1", redisx.TTLNotifyDedup).Err()
}

func recipient(email, phone string) string {
	if email != "" {
		return email
	}
	return phone
}
