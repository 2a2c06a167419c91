package domain

import "time"

// Delivery outcome states.
const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// Delivery is an append-only log entry recording the terminal outcome of a
// push send. Written best-effort; losing an entry is acceptable, double-
// sending is not, so idempotency lives on the reservation, not here.
type Delivery struct {
	DeliveryID    string    `json:"id" dynamodbav:"delivery_id"`
	UserID        string    `json:"user_id" dynamodbav:"user_id"`
	ReservationID string    `json:"reservation_id,omitempty" dynamodbav:"reservation_id,omitempty"`
	Topic         string    `json:"topic" dynamodbav:"topic"`
	Title         string    `json:"title" dynamodbav:"title"`
	Status        string    `json:"status" dynamodbav:"status"`
	Reason        string    `json:"reason,omitempty" dynamodbav:"reason,omitempty"`
	CreatedAt     time.Time `json:"created" dynamodbav:"created_at"`
}
