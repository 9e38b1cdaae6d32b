package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinwave/clinwave/internal/auth"
	"github.com/clinwave/clinwave/internal/message"
)

func newTestClient(hub *Hub, tenantID string) *Client {
	c := NewClient(hub, nil, nil, auth.Session{AgentID: "agent-1", TenantID: tenantID}, nil)
	hub.Register(c)
	return c
}

func receive(t *testing.T, c *Client) serverEvent {
	t.Helper()
	select {
	case frame := <-c.send:
		var ev serverEvent
		require.NoError(t, json.Unmarshal(frame, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return serverEvent{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case frame := <-c.send:
		t.Fatalf("unexpected frame: %s", frame)
	default:
	}
}

func TestEmitTargetsRoomMembersOnly(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	inRoom := newTestClient(hub, "t1")
	outside := newTestClient(hub, "t1")
	hub.Join(ConversationRoom("t1", "c1"), inRoom)

	hub.PublishMessage("t1", "c1", message.Message{ID: "m1"})

	ev := receive(t, inRoom)
	assert.Equal(t, EventNewMessage, ev.Event)
	assertSilent(t, outside)
}

func TestFeedAndConversationRoomsAreDistinct(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	feedOnly := newTestClient(hub, "t1")
	convOnly := newTestClient(hub, "t1")
	hub.Join(FeedRoom("t1"), feedOnly)
	hub.Join(ConversationRoom("t1", "c1"), convOnly)

	hub.PublishPreview("t1", Preview{ConversationID: "c1", LastMessage: "oi"})

	ev := receive(t, feedOnly)
	assert.Equal(t, EventConversationList, ev.Event)
	assertSilent(t, convOnly)
}

func TestTenantsAreIsolated(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	tenantA := newTestClient(hub, "t1")
	tenantB := newTestClient(hub, "t2")
	hub.Join(FeedRoom("t1"), tenantA)
	hub.Join(FeedRoom("t2"), tenantB)

	hub.PublishPreview("t1", Preview{ConversationID: "c1"})

	receive(t, tenantA)
	assertSilent(t, tenantB)
}

func TestPublishStatus(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	c := newTestClient(hub, "t1")
	hub.Join(ConversationRoom("t1", "c1"), c)

	hub.PublishStatus("t1", "c1", StatusChange{MessageID: "m1", Status: message.StatusRead})

	ev := receive(t, c)
	assert.Equal(t, EventMessageStatus, ev.Event)
}

func TestUnregisterRemovesFromRooms(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	c := newTestClient(hub, "t1")
	room := ConversationRoom("t1", "c1")
	hub.Join(room, c)
	require.Equal(t, 1, hub.RoomSize(room))

	hub.Unregister(c)
	assert.Equal(t, 0, hub.RoomSize(room))

	// Joining after unregister is a no-op.
	hub.Join(room, c)
	assert.Equal(t, 0, hub.RoomSize(room))
}

func TestSlowClientEvictionDropsLateWrites(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	c := newTestClient(hub, "t1")
	room := ConversationRoom("t1", "c1")
	hub.Join(room, c)
	for i := 0; i < sendBufferSize; i++ {
		require.True(t, c.enqueue([]byte(`{}`)))
	}

	// The full buffer forces Emit to evict the client.
	hub.PublishMessage("t1", "c1", message.Message{ID: "m1"})
	assert.Equal(t, 0, hub.RoomSize(room))

	// Writers racing the eviction must be dropped, not crash on the
	// closed channel.
	require.NotPanics(t, func() {
		c.reply(ack{Op: OpFeedJoin, Success: true})
	})
	assert.False(t, c.enqueue([]byte(`{}`)))
	require.NotPanics(t, c.close)
}
