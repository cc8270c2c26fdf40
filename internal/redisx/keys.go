package redisx

import "time"

const (
	// Cache for GET /orders/{id}: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Cache for the pending-order count shown on the back office dashboard.
	KeyPendingCount = "orders:pending_count"

	// Dedup notification delivery: dedup:notify:{event_id}
	KeyNotifyDedup = "dedup:notify:%s"
)

var (
	TTLStatusCache  = 5 * time.Minute
	TTLPendingCount = 30 * time.Second
	TTLNotifyDedup  = 48 * time.Hour
)
