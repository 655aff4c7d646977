package storage

import (
	"context"
	"errors"

	"github.com/brokerline/broker-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// RequestFields is the full set of mutable request columns written on
// update. The lifecycle engine resolves patch merging before the store is
// called, so an update always writes every field.
type RequestFields struct {
	Title        string
	Description  string
	Price        *float64
	DeliveryTime *string
	Status       models.RequestStatus
}

// UserStore captures user persistence needed by the auth handlers.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
}

// RequestStore captures request persistence. List results are in creation
// order.
type RequestStore interface {
	CreateRequest(ctx context.Context, ownerID int64, title, description string) (models.Request, error)
	GetRequest(ctx context.Context, id int64) (models.Request, error)
	ListRequests(ctx context.Context) ([]models.Request, error)
	ListRequestsByOwner(ctx context.Context, ownerID int64) ([]models.Request, error)
	UpdateRequest(ctx context.Context, id int64, fields RequestFields) (models.Request, error)
	DeleteRequest(ctx context.Context, id int64) error
}

// MessageStore is the append-only chat history for requests. Deleting a
// request discards its messages.
type MessageStore interface {
	AppendMessage(ctx context.Context, requestID int64, sender, content string) (models.Message, error)
	ListMessagesByRequest(ctx context.Context, requestID int64) ([]models.Message, error)
}

// PaymentStore is the payment ledger consulted before a request may reach
// the paid status.
type PaymentStore interface {
	CreatePayment(ctx context.Context, requestID int64, amount float64, method string) (models.Payment, error)
	ConfirmPayment(ctx context.Context, id int64) (models.Payment, error)
	HasConfirmedPayment(ctx context.Context, requestID int64) (bool, error)
}

// Store aggregates every persistence concern the server needs.
type Store interface {
	UserStore
	RequestStore
	MessageStore
	PaymentStore
}
