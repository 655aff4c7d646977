package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/brokerline/broker-be/internal/auth"
	"github.com/brokerline/broker-be/internal/chat"
	"github.com/brokerline/broker-be/internal/http/respond"
	"github.com/brokerline/broker-be/internal/lifecycle"
	"github.com/brokerline/broker-be/internal/models/dto"
	"github.com/brokerline/broker-be/internal/storage"
)

const subscriberBuffer = 32

// ChatHandler upgrades connections to the chat socket. Joining a room
// requires the same owner-or-admin authorization as reading the request.
type ChatHandler struct {
	hub     *chat.Hub
	engine  *lifecycle.Engine
	tokens  *auth.TokenManager
	origins []string
}

// NewChatHandler constructs the handler. origins configures the websocket
// origin patterns accepted on upgrade; empty means same-origin only.
func NewChatHandler(hub *chat.Hub, engine *lifecycle.Engine, tokens *auth.TokenManager, origins []string) *ChatHandler {
	return &ChatHandler{hub: hub, engine: engine, tokens: tokens, origins: origins}
}

// Register attaches the socket route to the router.
func (h *ChatHandler) Register(r chi.Router) {
	r.Get("/ws", h.handleSocket)
}

func (h *ChatHandler) handleSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Parse(socketToken(r))
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "invalid token")
		return
	}

	opts := &websocket.AcceptOptions{}
	for _, origin := range h.origins {
		if origin == "*" {
			opts.InsecureSkipVerify = true
			break
		}
		opts.OriginPatterns = append(opts.OriginPatterns, origin)
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.hub.Register(subscriberBuffer)
	defer h.hub.Unregister(sub)

	frames := make(chan dto.ChatFrame)
	readErr := make(chan error, 1)
	go func() {
		for {
			var frame dto.ChatFrame
			if err := wsjson.Read(ctx, conn, &frame); err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-readErr:
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case <-sub.Done():
			_ = conn.Close(websocket.StatusPolicyViolation, "slow consumer")
			return
		case evt := <-sub.Events():
			if !h.writeEvent(ctx, conn, evt) {
				return
			}
		case frame := <-frames:
			if !h.handleFrame(ctx, conn, identity, sub, frame) {
				return
			}
		}
	}
}

// handleFrame processes one client frame; it reports false once the
// connection should close.
func (h *ChatHandler) handleFrame(ctx context.Context, conn *websocket.Conn, identity auth.Identity, sub *chat.Subscriber, frame dto.ChatFrame) bool {
	switch frame.Type {
	case "join":
		if _, err := h.engine.Get(ctx, identity, frame.RequestID); err != nil {
			return h.writeEvent(ctx, conn, errorEvent(frame.RequestID, err))
		}
		h.hub.Join(sub, frame.RequestID)
		return h.writeEvent(ctx, conn, chat.Event{Type: "joined", RequestID: frame.RequestID})
	case "send":
		if !h.hub.Joined(sub, frame.RequestID) {
			return h.writeEvent(ctx, conn, chat.Event{Type: "error", RequestID: frame.RequestID, Error: "join the room first"})
		}
		sender := strings.TrimSpace(frame.Sender)
		if sender == "" {
			sender = identity.Name
		}
		if _, err := h.hub.Send(ctx, frame.RequestID, sender, frame.Content); err != nil {
			return h.writeEvent(ctx, conn, errorEvent(frame.RequestID, err))
		}
		return true
	default:
		return h.writeEvent(ctx, conn, chat.Event{Type: "error", Error: "unknown frame type"})
	}
}

func (h *ChatHandler) writeEvent(ctx context.Context, conn *websocket.Conn, evt chat.Event) bool {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := wsjson.Write(writeCtx, conn, evt)
	cancel()
	if err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
		return false
	}
	return true
}

func errorEvent(requestID int64, err error) chat.Event {
	evt := chat.Event{Type: "error", RequestID: requestID}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		evt.Error = "request not found"
	case errors.Is(err, lifecycle.ErrForbidden):
		evt.Error = "forbidden"
	default:
		evt.Error = "internal error"
	}
	return evt
}

// socketToken pulls the capability token from the query string, falling
// back to a bearer header for non-browser clients.
func socketToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	const prefix = "Bearer "
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
