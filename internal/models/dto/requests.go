package dto

type CreateRequestRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type CreatePaymentRequest struct {
	RequestID int64   `json:"request_id"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
}

// ChatFrame is a client-to-server frame on the chat socket. Type is "join"
// or "send"; RequestID addresses the room.
type ChatFrame struct {
	Type      string `json:"type"`
	RequestID int64  `json:"request_id"`
	Sender    string `json:"sender,omitempty"`
	Content   string `json:"content,omitempty"`
}
