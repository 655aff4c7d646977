// Package lifecycle enforces the request negotiation state machine.
//
// A request starts pending, an administrator prices it (price_set), the
// owner accepts (user_accepted), and the administrator settles it (paid)
// once the payment ledger holds a confirmed payment. Any other transition
// is rejected regardless of what the client asks for.
package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/brokerline/broker-be/internal/auth"
	"github.com/brokerline/broker-be/internal/models"
	"github.com/brokerline/broker-be/internal/storage"
)

var (
	// ErrForbidden means the actor is neither the owner nor an administrator,
	// or lacks the role a transition demands.
	ErrForbidden = errors.New("actor may not act on this request")

	// ErrInvalidTransition means the requested status change is not in the
	// transition table, or its required fields are missing.
	ErrInvalidTransition = errors.New("illegal status transition")

	// ErrPaymentNotConfirmed blocks the paid transition until the ledger
	// holds a confirmed payment for the request.
	ErrPaymentNotConfirmed = errors.New("no confirmed payment for request")

	// ErrTitleRequired rejects request creation with an empty title.
	ErrTitleRequired = errors.New("title is required")
)

// Patch is a partial request update. A nil field was absent from the
// payload and keeps its previous value; a present field is applied even
// when zero, so a price of 0 is expressible.
type Patch struct {
	Title        *string               `json:"title"`
	Description  *string               `json:"description"`
	Price        *float64              `json:"price"`
	DeliveryTime *string               `json:"delivery_time"`
	Status       *models.RequestStatus `json:"status"`
}

// Engine applies negotiation rules over the request store and payment
// ledger. Mutations on one request id are serialized through a keyed lock
// so concurrent patches cannot interleave their read-merge-write cycles.
type Engine struct {
	requests storage.RequestStore
	payments storage.PaymentStore
	locks    keyedLocks
}

// NewEngine wires the engine to its stores.
func NewEngine(requests storage.RequestStore, payments storage.PaymentStore) *Engine {
	return &Engine{requests: requests, payments: payments}
}

// Create opens a new request owned by the actor, in the pending status.
func (e *Engine) Create(ctx context.Context, actor auth.Identity, title, description string) (models.Request, error) {
	if strings.TrimSpace(title) == "" {
		return models.Request{}, ErrTitleRequired
	}
	return e.requests.CreateRequest(ctx, actor.UserID, title, description)
}

// List returns every request for an administrator and only owned requests
// for a regular user, in creation order.
func (e *Engine) List(ctx context.Context, actor auth.Identity) ([]models.Request, error) {
	if actor.IsAdmin() {
		return e.requests.ListRequests(ctx)
	}
	return e.requests.ListRequestsByOwner(ctx, actor.UserID)
}

// Get fetches a request the actor is allowed to read: its owner or an
// administrator. The same check gates chat room membership and history.
func (e *Engine) Get(ctx context.Context, actor auth.Identity, id int64) (models.Request, error) {
	req, err := e.requests.GetRequest(ctx, id)
	if err != nil {
		return models.Request{}, err
	}
	if !actor.IsAdmin() && req.OwnerID != actor.UserID {
		return models.Request{}, ErrForbidden
	}
	return req, nil
}

// Update merges a patch into a request after checking ownership and the
// transition table, and returns the full updated request.
func (e *Engine) Update(ctx context.Context, actor auth.Identity, id int64, patch Patch) (models.Request, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	cur, err := e.requests.GetRequest(ctx, id)
	if err != nil {
		return models.Request{}, err
	}
	if !actor.IsAdmin() && cur.OwnerID != actor.UserID {
		return models.Request{}, ErrForbidden
	}

	next := cur.Status
	if patch.Status != nil {
		next = *patch.Status
		if !next.Valid() {
			return models.Request{}, ErrInvalidTransition
		}
	}
	if err := e.checkTransition(ctx, actor, cur, next, patch); err != nil {
		return models.Request{}, err
	}

	fields := storage.RequestFields{
		Title:        cur.Title,
		Description:  cur.Description,
		Price:        cur.Price,
		DeliveryTime: cur.DeliveryTime,
		Status:       next,
	}
	if patch.Title != nil {
		fields.Title = *patch.Title
	}
	if patch.Description != nil {
		fields.Description = *patch.Description
	}
	if patch.Price != nil {
		fields.Price = patch.Price
	}
	if patch.DeliveryTime != nil {
		fields.DeliveryTime = patch.DeliveryTime
	}

	return e.requests.UpdateRequest(ctx, id, fields)
}

// Delete removes a request. Ownership rules match Update; the store
// cascades the request's messages and payments.
func (e *Engine) Delete(ctx context.Context, actor auth.Identity, id int64) error {
	unlock := e.locks.lock(id)
	defer unlock()

	cur, err := e.requests.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && cur.OwnerID != actor.UserID {
		return ErrForbidden
	}
	return e.requests.DeleteRequest(ctx, id)
}

// checkTransition validates one step of the state machine:
//
//	pending       -> price_set      admin only, price and delivery together
//	price_set     -> user_accepted  owner only
//	user_accepted -> paid           admin only, after payment confirmation
//	pending       -> pending        plain title/description edit
//
// A patch that keeps the current status is a plain edit; title and
// description are editable only while the request is still pending, and
// price and delivery never move outside the price_set transition.
func (e *Engine) checkTransition(ctx context.Context, actor auth.Identity, cur models.Request, next models.RequestStatus, patch Patch) error {
	isOwner := cur.OwnerID == actor.UserID

	if next == cur.Status {
		if patch.Price != nil || patch.DeliveryTime != nil {
			return ErrInvalidTransition
		}
		if cur.Status != models.StatusPending && (patch.Title != nil || patch.Description != nil) {
			return ErrInvalidTransition
		}
		return nil
	}

	switch {
	case cur.Status == models.StatusPending && next == models.StatusPriceSet:
		if !actor.IsAdmin() {
			return ErrForbidden
		}
		if patch.Price == nil || patch.DeliveryTime == nil {
			return ErrInvalidTransition
		}
		return nil
	case cur.Status == models.StatusPriceSet && next == models.StatusUserAccepted:
		if !isOwner {
			return ErrForbidden
		}
		return nil
	case cur.Status == models.StatusUserAccepted && next == models.StatusPaid:
		if !actor.IsAdmin() {
			return ErrForbidden
		}
		confirmed, err := e.payments.HasConfirmedPayment(ctx, cur.ID)
		if err != nil {
			return err
		}
		if !confirmed {
			return ErrPaymentNotConfirmed
		}
		return nil
	default:
		return ErrInvalidTransition
	}
}
