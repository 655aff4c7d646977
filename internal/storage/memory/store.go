// Package memory holds an in-memory implementation of the storage
// interfaces, used by tests that do not need a live database.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/brokerline/broker-be/internal/models"
	"github.com/brokerline/broker-be/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps every table as an insertion-ordered slice behind one mutex.
type Store struct {
	mu       sync.Mutex
	users    []models.User
	requests []models.Request
	messages []models.Message
	payments []models.Payment

	nextUserID    int64
	nextRequestID int64
	nextMessageID int64
	nextPaymentID int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// CreateUser inserts a user, enforcing email uniqueness.
func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return models.User{}, storage.ErrAlreadyExists
		}
	}
	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = time.Now()
	s.users = append(s.users, user)
	return user, nil
}

// FindUserByEmail fetches a user by email.
func (s *Store) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

// CreateRequest inserts a request in the pending status.
func (s *Store) CreateRequest(_ context.Context, ownerID int64, title, description string) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRequestID++
	req := models.Request{
		ID:          s.nextRequestID,
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Status:      models.StatusPending,
		CreatedAt:   time.Now(),
	}
	s.requests = append(s.requests, req)
	return req, nil
}

// GetRequest fetches a request by id.
func (s *Store) GetRequest(_ context.Context, id int64) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests {
		if req.ID == id {
			return req, nil
		}
	}
	return models.Request{}, storage.ErrNotFound
}

// ListRequests returns every request in creation order.
func (s *Store) ListRequests(_ context.Context) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Request, len(s.requests))
	copy(out, s.requests)
	return out, nil
}

// ListRequestsByOwner returns the owner's requests in creation order.
func (s *Store) ListRequestsByOwner(_ context.Context, ownerID int64) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Request{}
	for _, req := range s.requests {
		if req.OwnerID == ownerID {
			out = append(out, req)
		}
	}
	return out, nil
}

// UpdateRequest writes the full mutable field set and returns the updated row.
func (s *Store) UpdateRequest(_ context.Context, id int64, fields storage.RequestFields) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, req := range s.requests {
		if req.ID != id {
			continue
		}
		req.Title = fields.Title
		req.Description = fields.Description
		req.Price = fields.Price
		req.DeliveryTime = fields.DeliveryTime
		req.Status = fields.Status
		s.requests[i] = req
		return req, nil
	}
	return models.Request{}, storage.ErrNotFound
}

// DeleteRequest removes a request and cascades its messages and payments.
func (s *Store) DeleteRequest(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, req := range s.requests {
		if req.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return storage.ErrNotFound
	}
	s.requests = append(s.requests[:idx], s.requests[idx+1:]...)

	kept := s.messages[:0]
	for _, msg := range s.messages {
		if msg.RequestID != id {
			kept = append(kept, msg)
		}
	}
	s.messages = kept

	keptPayments := s.payments[:0]
	for _, p := range s.payments {
		if p.RequestID != id {
			keptPayments = append(keptPayments, p)
		}
	}
	s.payments = keptPayments
	return nil
}

// AppendMessage stores one chat message.
func (s *Store) AppendMessage(_ context.Context, requestID int64, sender, content string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMessageID++
	msg := models.Message{
		ID:        s.nextMessageID,
		RequestID: requestID,
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now(),
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

// ListMessagesByRequest returns a request's chat history in insertion order.
func (s *Store) ListMessagesByRequest(_ context.Context, requestID int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Message{}
	for _, msg := range s.messages {
		if msg.RequestID == requestID {
			out = append(out, msg)
		}
	}
	return out, nil
}

// CreatePayment records a payment intent.
func (s *Store) CreatePayment(_ context.Context, requestID int64, amount float64, method string) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPaymentID++
	payment := models.Payment{
		ID:        s.nextPaymentID,
		RequestID: requestID,
		Amount:    amount,
		Method:    method,
		Status:    models.PaymentPending,
		CreatedAt: time.Now(),
	}
	s.payments = append(s.payments, payment)
	return payment, nil
}

// ConfirmPayment marks a payment confirmed.
func (s *Store) ConfirmPayment(_ context.Context, id int64) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.payments {
		if p.ID == id {
			p.Status = models.PaymentConfirmed
			s.payments[i] = p
			return p, nil
		}
	}
	return models.Payment{}, storage.ErrNotFound
}

// HasConfirmedPayment reports whether any confirmed payment exists for the
// request.
func (s *Store) HasConfirmedPayment(_ context.Context, requestID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.RequestID == requestID && p.Status == models.PaymentConfirmed {
			return true, nil
		}
	}
	return false, nil
}
