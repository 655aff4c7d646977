package models

import "time"

// Message is one chat entry in a request's negotiation room. Append-only.
type Message struct {
	ID        int64     `json:"id"`
	RequestID int64     `json:"request_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
