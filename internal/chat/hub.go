// Package chat relays negotiation messages between the channels joined to
// a request's room and persists every message before broadcasting it.
package chat

import (
	"context"
	"sync"

	"github.com/brokerline/broker-be/internal/models"
	"github.com/brokerline/broker-be/internal/storage"
)

// Event is one server-to-client frame on the chat socket.
type Event struct {
	Type      string `json:"type"`
	RequestID int64  `json:"request_id,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Subscriber is one connected channel. Events are delivered on Events();
// Done() is closed when the hub gives up on the subscriber, either because
// it was unregistered or because its buffer overflowed.
type Subscriber struct {
	out   chan Event
	done  chan struct{}
	once  sync.Once
	rooms map[int64]*room
}

// Events is the subscriber's delivery channel.
func (s *Subscriber) Events() <-chan Event { return s.out }

// Done is closed once the subscriber is no longer addressable.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// room serializes persistence and broadcast for one request so delivery
// order always matches storage order.
type room struct {
	mu      sync.Mutex
	members map[*Subscriber]struct{}
}

// Hub owns the room membership registry. It is the only component allowed
// to read or mutate membership; everything else goes through its methods.
type Hub struct {
	messages storage.MessageStore

	mu    sync.Mutex
	rooms map[int64]*room
}

// NewHub creates a hub persisting messages to the given store.
func NewHub(messages storage.MessageStore) *Hub {
	return &Hub{
		messages: messages,
		rooms:    make(map[int64]*room),
	}
}

// Register creates a subscriber whose delivery channel buffers up to
// buffer events before the hub drops the connection as a slow consumer.
func (h *Hub) Register(buffer int) *Subscriber {
	return &Subscriber{
		out:   make(chan Event, buffer),
		done:  make(chan struct{}),
		rooms: make(map[int64]*room),
	}
}

// Join adds the subscriber to the request's room. Joining a room twice has
// the same effect as joining it once.
func (h *Hub) Join(sub *Subscriber, requestID int64) {
	h.mu.Lock()
	r := h.rooms[requestID]
	if r == nil {
		r = &room{members: make(map[*Subscriber]struct{})}
		h.rooms[requestID] = r
	}
	sub.rooms[requestID] = r
	h.mu.Unlock()

	r.mu.Lock()
	r.members[sub] = struct{}{}
	r.mu.Unlock()
}

// Joined reports whether the subscriber has joined the request's room.
func (h *Hub) Joined(sub *Subscriber, requestID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := sub.rooms[requestID]
	return ok
}

// Unregister removes the subscriber from every room it joined and marks it
// done. Must be called when the underlying connection closes so no dead
// channel stays addressable.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	rooms := make([]*room, 0, len(sub.rooms))
	for id, r := range sub.rooms {
		rooms = append(rooms, r)
		delete(sub.rooms, id)
	}
	h.mu.Unlock()

	for _, r := range rooms {
		r.mu.Lock()
		delete(r.members, sub)
		r.mu.Unlock()
	}
	sub.close()
}

// Send persists a message and broadcasts it to every member of the
// request's room, the sender's own channel included. The room lock is held
// across both steps so every member observes messages in persistence
// order. A member whose buffer is full is dropped rather than blocking the
// room.
func (h *Hub) Send(ctx context.Context, requestID int64, sender, content string) (models.Message, error) {
	h.mu.Lock()
	r := h.rooms[requestID]
	if r == nil {
		r = &room{members: make(map[*Subscriber]struct{})}
		h.rooms[requestID] = r
	}
	h.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	msg, err := h.messages.AppendMessage(ctx, requestID, sender, content)
	if err != nil {
		return models.Message{}, err
	}

	evt := Event{Type: "message", RequestID: requestID, Sender: sender, Content: content}
	for member := range r.members {
		select {
		case member.out <- evt:
		default:
			delete(r.members, member)
			member.close()
		}
	}
	return msg, nil
}
