package chat_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brokerline/broker-be/internal/chat"
	"github.com/brokerline/broker-be/internal/storage/memory"
)

func recvEvent(t *testing.T, sub *chat.Subscriber) chat.Event {
	t.Helper()
	select {
	case evt := <-sub.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return chat.Event{}
	}
}

func requireNoEvent(t *testing.T, sub *chat.Subscriber) {
	t.Helper()
	select {
	case evt := <-sub.Events():
		t.Fatalf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesAllMembersIncludingSender(t *testing.T) {
	store := memory.NewStore()
	hub := chat.NewHub(store)
	ctx := context.Background()

	first := hub.Register(8)
	second := hub.Register(8)
	hub.Join(first, 42)
	hub.Join(second, 42)

	msg, err := hub.Send(ctx, 42, "Alice", "hello")
	require.NoError(t, err)
	require.Equal(t, int64(42), msg.RequestID)

	for _, sub := range []*chat.Subscriber{first, second} {
		evt := recvEvent(t, sub)
		require.Equal(t, "message", evt.Type)
		require.Equal(t, int64(42), evt.RequestID)
		require.Equal(t, "Alice", evt.Sender)
		require.Equal(t, "hello", evt.Content)
	}

	history, err := store.ListMessagesByRequest(ctx, 42)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "hello", history[0].Content)
}

func TestDeliveryOrderMatchesHistory(t *testing.T) {
	store := memory.NewStore()
	hub := chat.NewHub(store)
	ctx := context.Background()

	sub := hub.Register(32)
	hub.Join(sub, 7)

	const n = 10
	for i := 0; i < n; i++ {
		_, err := hub.Send(ctx, 7, "Alice", fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	for i := 0; i < n; i++ {
		evt := recvEvent(t, sub)
		require.Equal(t, fmt.Sprintf("msg-%d", i), evt.Content)
	}

	history, err := store.ListMessagesByRequest(ctx, 7)
	require.NoError(t, err)
	require.Len(t, history, n)
	for i, msg := range history {
		require.Equal(t, fmt.Sprintf("msg-%d", i), msg.Content)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	hub := chat.NewHub(store)
	ctx := context.Background()

	sub := hub.Register(8)
	hub.Join(sub, 42)
	hub.Join(sub, 42)
	require.True(t, hub.Joined(sub, 42))

	_, err := hub.Send(ctx, 42, "Alice", "once")
	require.NoError(t, err)

	evt := recvEvent(t, sub)
	require.Equal(t, "once", evt.Content)
	requireNoEvent(t, sub)
}

func TestUnregisterStopsDelivery(t *testing.T) {
	store := memory.NewStore()
	hub := chat.NewHub(store)
	ctx := context.Background()

	leaving := hub.Register(8)
	staying := hub.Register(8)
	hub.Join(leaving, 42)
	hub.Join(staying, 42)

	hub.Unregister(leaving)
	select {
	case <-leaving.Done():
	default:
		t.Fatal("done not closed after unregister")
	}
	require.False(t, hub.Joined(leaving, 42))

	_, err := hub.Send(ctx, 42, "Alice", "after leave")
	require.NoError(t, err)

	evt := recvEvent(t, staying)
	require.Equal(t, "after leave", evt.Content)
	requireNoEvent(t, leaving)
}

func TestSlowConsumerIsDropped(t *testing.T) {
	store := memory.NewStore()
	hub := chat.NewHub(store)
	ctx := context.Background()

	slow := hub.Register(1)
	fast := hub.Register(8)
	hub.Join(slow, 42)
	hub.Join(fast, 42)

	_, err := hub.Send(ctx, 42, "Alice", "first")
	require.NoError(t, err)
	_, err = hub.Send(ctx, 42, "Alice", "second")
	require.NoError(t, err)

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("slow consumer was not dropped")
	}

	// The rest of the room and the history are unaffected.
	require.Equal(t, "first", recvEvent(t, fast).Content)
	require.Equal(t, "second", recvEvent(t, fast).Content)
	history, err := store.ListMessagesByRequest(ctx, 42)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestSendToEmptyRoomStillPersists(t *testing.T) {
	store := memory.NewStore()
	hub := chat.NewHub(store)
	ctx := context.Background()

	_, err := hub.Send(ctx, 99, "Alice", "anyone there?")
	require.NoError(t, err)

	history, err := store.ListMessagesByRequest(ctx, 99)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestRoomsAreIsolated(t *testing.T) {
	store := memory.NewStore()
	hub := chat.NewHub(store)
	ctx := context.Background()

	inRoom := hub.Register(8)
	elsewhere := hub.Register(8)
	hub.Join(inRoom, 1)
	hub.Join(elsewhere, 2)

	_, err := hub.Send(ctx, 1, "Alice", "room one only")
	require.NoError(t, err)

	require.Equal(t, "room one only", recvEvent(t, inRoom).Content)
	requireNoEvent(t, elsewhere)
}
