package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/brokerline/broker-be/internal/auth"
	"github.com/brokerline/broker-be/internal/http/respond"
	"github.com/brokerline/broker-be/internal/lifecycle"
	"github.com/brokerline/broker-be/internal/storage"
)

// MessageHandler serves chat history. Reading history carries the same
// authorization as reading the request itself.
type MessageHandler struct {
	engine   *lifecycle.Engine
	messages storage.MessageStore
}

// NewMessageHandler constructs the handler.
func NewMessageHandler(engine *lifecycle.Engine, messages storage.MessageStore) *MessageHandler {
	return &MessageHandler{engine: engine, messages: messages}
}

// Register attaches the history route to the router.
func (h *MessageHandler) Register(r chi.Router) {
	r.Get("/messages/{requestID}", h.handleHistory)
}

func (h *MessageHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFrom(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request id")
		return
	}
	if _, err := h.engine.Get(r.Context(), identity, id); err != nil {
		writeDomainError(w, err)
		return
	}
	messages, err := h.messages.ListMessagesByRequest(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "messages", messages)
}
