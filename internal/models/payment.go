package models

import "time"

// PaymentStatus is the state of a recorded payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
)

// Payment records a payment intent against a request and its administrator
// confirmation. Confirmation does not itself advance the request status.
type Payment struct {
	ID        int64         `json:"id"`
	RequestID int64         `json:"request_id"`
	Amount    float64       `json:"amount"`
	Method    string        `json:"method"`
	Status    PaymentStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}
