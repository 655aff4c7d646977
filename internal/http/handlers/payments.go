package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/brokerline/broker-be/internal/auth"
	"github.com/brokerline/broker-be/internal/http/respond"
	"github.com/brokerline/broker-be/internal/models/dto"
	"github.com/brokerline/broker-be/internal/storage"
)

// PaymentHandler records payment intents and administrator confirmations.
// Confirming a payment does not advance the request; the administrator
// transitions the request to paid separately, and the lifecycle engine
// checks the ledger at that point.
type PaymentHandler struct {
	payments storage.PaymentStore
	requests storage.RequestStore
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(payments storage.PaymentStore, requests storage.RequestStore) *PaymentHandler {
	return &PaymentHandler{payments: payments, requests: requests}
}

// Register attaches payment routes to the router.
func (h *PaymentHandler) Register(r chi.Router) {
	r.Post("/payments", h.handleCreate)
	r.Put("/payments/{paymentID}/confirm", h.handleConfirm)
}

func (h *PaymentHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Amount <= 0 {
		respond.Error(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if _, err := h.requests.GetRequest(r.Context(), req.RequestID); err != nil {
		writeDomainError(w, err)
		return
	}
	payment, err := h.payments.CreatePayment(r.Context(), req.RequestID, req.Amount, req.Method)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "payment recorded", payment)
}

func (h *PaymentHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	if !identity.IsAdmin() {
		respond.Error(w, http.StatusForbidden, "forbidden")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "paymentID"), 10, 64)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid payment id")
		return
	}
	payment, err := h.payments.ConfirmPayment(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "payment confirmed", payment)
}
