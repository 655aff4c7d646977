package models

import "time"

// RequestStatus tracks where a request sits in the negotiation.
type RequestStatus string

const (
	StatusPending      RequestStatus = "pending"
	StatusPriceSet     RequestStatus = "price_set"
	StatusUserAccepted RequestStatus = "user_accepted"
	StatusPaid         RequestStatus = "paid"
)

// Valid reports whether s is one of the known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPriceSet, StatusUserAccepted, StatusPaid:
		return true
	}
	return false
}

// Request is a unit of work negotiated between its owner and the administrator.
// Price and DeliveryTime stay nil until the administrator sets them.
type Request struct {
	ID           int64         `json:"id"`
	OwnerID      int64         `json:"owner_id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Price        *float64      `json:"price,omitempty"`
	DeliveryTime *string       `json:"delivery_time,omitempty"`
	Status       RequestStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}
