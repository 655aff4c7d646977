package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/brokerline/broker-be/internal/auth"
	"github.com/brokerline/broker-be/internal/http/respond"
	"github.com/brokerline/broker-be/internal/lifecycle"
	"github.com/brokerline/broker-be/internal/models/dto"
)

// RequestHandler exposes the request lifecycle over HTTP. All routes run
// behind the auth middleware, so an identity is always on the context.
type RequestHandler struct {
	engine *lifecycle.Engine
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(engine *lifecycle.Engine) *RequestHandler {
	return &RequestHandler{engine: engine}
}

// Register attaches request routes to the router.
func (h *RequestHandler) Register(r chi.Router) {
	r.Post("/requests", h.handleCreate)
	r.Get("/requests", h.handleList)
	r.Put("/requests/{requestID}", h.handleUpdate)
	r.Delete("/requests/{requestID}", h.handleDelete)
}

func (h *RequestHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	var req dto.CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	created, err := h.engine.Create(r.Context(), identity, req.Title, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "request created", created)
}

func (h *RequestHandler) handleList(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	requests, err := h.engine.List(r.Context(), identity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "requests", requests)
}

func (h *RequestHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	id, err := requestIDParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request id")
		return
	}
	var patch lifecycle.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	updated, err := h.engine.Update(r.Context(), identity, id, patch)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "request updated", updated)
}

func (h *RequestHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	id, err := requestIDParam(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request id")
		return
	}
	if err := h.engine.Delete(r.Context(), identity, id); err != nil {
		writeDomainError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "request deleted", nil)
}

func requestIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
}
