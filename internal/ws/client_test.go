package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinwave/clinwave/internal/auth"
	"github.com/clinwave/clinwave/internal/message"
)

type fakeChatAPI struct {
	conversations map[string]bool
	history       []message.Message
	hasMore       bool
	sendErr       error
	readCalls     []string
}

func (f *fakeChatAPI) VerifyConversation(ctx context.Context, tenantID, conversationID string) error {
	if !f.conversations[tenantID+"|"+conversationID] {
		return errors.New("not found")
	}
	return nil
}

func (f *fakeChatAPI) History(ctx context.Context, tenantID, conversationID string, before *time.Time, limit int) ([]message.Message, bool, error) {
	if err := f.VerifyConversation(ctx, tenantID, conversationID); err != nil {
		return nil, false, err
	}
	return f.history, f.hasMore, nil
}

func (f *fakeChatAPI) Send(ctx context.Context, tenantID, conversationID, content string) (message.Message, error) {
	if f.sendErr != nil {
		return message.Message{}, f.sendErr
	}
	return message.Message{ID: "m1", ConversationID: conversationID, Content: content, Status: message.StatusSent}, nil
}

func (f *fakeChatAPI) MarkRead(ctx context.Context, tenantID, conversationID, messageID string) error {
	f.readCalls = append(f.readCalls, messageID)
	return nil
}

func dispatchFrame(t *testing.T, c *Client, op, id string, data any) ack {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		require.NoError(t, err)
		raw = encoded
	}
	c.dispatch(context.Background(), clientFrame{Op: op, ID: id, Data: raw})

	select {
	case frame := <-c.send:
		var a ack
		require.NoError(t, json.Unmarshal(frame, &a))
		return a
	case <-time.After(time.Second):
		t.Fatal("no ack received")
		return ack{}
	}
}

func newDispatchClient(api ChatAPI) (*Hub, *Client) {
	hub := NewHub(nil)
	c := NewClient(hub, nil, api, auth.Session{AgentID: "agent-1", TenantID: "t1"}, nil)
	hub.Register(c)
	return hub, c
}

func TestDispatchFeedJoin(t *testing.T) {
	t.Parallel()

	hub, c := newDispatchClient(&fakeChatAPI{})
	a := dispatchFrame(t, c, OpFeedJoin, "1", nil)

	assert.True(t, a.Success)
	assert.Equal(t, "1", a.ID)
	assert.Equal(t, 1, hub.RoomSize(FeedRoom("t1")))
}

func TestDispatchConversationJoinChecksOwnership(t *testing.T) {
	t.Parallel()

	api := &fakeChatAPI{conversations: map[string]bool{"t1|c1": true}}
	hub, c := newDispatchClient(api)

	granted := dispatchFrame(t, c, OpConversationJoin, "1", joinRequest{ConversationID: "c1"})
	assert.True(t, granted.Success)
	assert.Equal(t, 1, hub.RoomSize(ConversationRoom("t1", "c1")))

	denied := dispatchFrame(t, c, OpConversationJoin, "2", joinRequest{ConversationID: "foreign"})
	assert.False(t, denied.Success)
	assert.Equal(t, 0, hub.RoomSize(ConversationRoom("t1", "foreign")))
}

func TestDispatchHistory(t *testing.T) {
	t.Parallel()

	api := &fakeChatAPI{
		conversations: map[string]bool{"t1|c1": true},
		history:       []message.Message{{ID: "m2"}, {ID: "m1"}},
		hasMore:       true,
	}
	_, c := newDispatchClient(api)

	a := dispatchFrame(t, c, OpConversationHistory, "1", historyRequest{ConversationID: "c1"})
	require.True(t, a.Success)

	encoded, err := json.Marshal(a.Data)
	require.NoError(t, err)
	var page historyResponse
	require.NoError(t, json.Unmarshal(encoded, &page))
	assert.Len(t, page.Messages, 2)
	assert.True(t, page.HasMore)
}

func TestDispatchSend(t *testing.T) {
	t.Parallel()

	_, c := newDispatchClient(&fakeChatAPI{})
	a := dispatchFrame(t, c, OpMessageSend, "1", sendRequest{ConversationID: "c1", Content: "oi"})
	assert.True(t, a.Success)
}

func TestDispatchSendFailure(t *testing.T) {
	t.Parallel()

	_, c := newDispatchClient(&fakeChatAPI{sendErr: errors.New("gateway down")})
	a := dispatchFrame(t, c, OpMessageSend, "1", sendRequest{ConversationID: "c1", Content: "oi"})
	assert.False(t, a.Success)
	assert.NotEmpty(t, a.Error)
}

func TestDispatchMessageRead(t *testing.T) {
	t.Parallel()

	api := &fakeChatAPI{}
	_, c := newDispatchClient(api)
	a := dispatchFrame(t, c, OpMessageRead, "1", readRequest{ConversationID: "c1", MessageID: "m1"})
	assert.True(t, a.Success)
	assert.Equal(t, []string{"m1"}, api.readCalls)
}

func TestDispatchRejectsMalformedRequests(t *testing.T) {
	t.Parallel()

	_, c := newDispatchClient(&fakeChatAPI{})

	missingConv := dispatchFrame(t, c, OpMessageSend, "1", sendRequest{Content: "oi"})
	assert.False(t, missingConv.Success)

	unknownOp := dispatchFrame(t, c, "bogus:op", "2", nil)
	assert.False(t, unknownOp.Success)
}
