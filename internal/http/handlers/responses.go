package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/brokerline/broker-be/internal/http/respond"
	"github.com/brokerline/broker-be/internal/lifecycle"
	"github.com/brokerline/broker-be/internal/storage"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("respondJSON: %v", err)
	}
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
// Store failures surface as an opaque 500 without internal detail.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, lifecycle.ErrForbidden):
		respond.Error(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		respond.Error(w, http.StatusUnprocessableEntity, "illegal status transition")
	case errors.Is(err, lifecycle.ErrPaymentNotConfirmed):
		respond.Error(w, http.StatusUnprocessableEntity, "payment not confirmed")
	case errors.Is(err, lifecycle.ErrTitleRequired):
		respond.Error(w, http.StatusBadRequest, "title is required")
	default:
		log.Printf("store error: %v", err)
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}
