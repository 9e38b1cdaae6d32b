package message

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinwave/clinwave/internal/evolution"
)

type fakeStore struct {
	messages map[string]Message
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: make(map[string]Message)}
}

func (f *fakeStore) Insert(ctx context.Context, params InsertParams) (Message, error) {
	if params.GatewayMessageID != "" && params.Status == StatusReceived {
		for _, m := range f.messages {
			if m.ConversationID == params.ConversationID &&
				m.GatewayMessageID == params.GatewayMessageID &&
				m.Status == StatusReceived {
				return Message{}, ErrDuplicate
			}
		}
	}
	f.nextID++
	m := Message{
		ID:               fmt.Sprintf("msg-%d", f.nextID),
		ConversationID:   params.ConversationID,
		Sender:           params.Sender,
		Content:          params.Content,
		Kind:             params.Kind,
		GatewayMessageID: params.GatewayMessageID,
		Status:           params.Status,
		CreatedAt:        params.CreatedAt,
	}
	f.messages[m.ID] = m
	return m, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, from, to Status, deliveryID string) (Message, error) {
	m, ok := f.messages[id]
	if !ok || m.Status != from {
		return Message{}, ErrInvalidTransition
	}
	m.Status = to
	if deliveryID != "" {
		m.GatewayMessageID = deliveryID
	}
	f.messages[id] = m
	return m, nil
}

func (f *fakeStore) UpdateStatusIn(ctx context.Context, conversationID, id string, from, to Status) (Message, error) {
	m, ok := f.messages[id]
	if !ok || m.ConversationID != conversationID {
		return Message{}, ErrNotFound
	}
	if m.Status != from {
		return Message{}, ErrInvalidTransition
	}
	m.Status = to
	f.messages[id] = m
	return m, nil
}

func (f *fakeStore) ListBefore(ctx context.Context, conversationID string, before *time.Time, limit int32) ([]Message, error) {
	var items []Message
	for _, m := range f.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		items = append(items, m)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if int32(len(items)) > limit {
		items = items[:limit]
	}
	return items, nil
}

func TestPersistInboundDeduplicates(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store)

	input := InboundInput{
		ConversationID:   "c1",
		Sender:           SenderPatient,
		Content:          "oi",
		Kind:             evolution.KindText,
		GatewayMessageID: "GW-1",
		Timestamp:        time.Now().UTC(),
	}
	first, err := svc.PersistInbound(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, first.Status)

	_, err = svc.PersistInbound(context.Background(), input)
	assert.ErrorIs(t, err, ErrDuplicate)

	// The same gateway id in another conversation is a distinct message.
	other := input
	other.ConversationID = "c2"
	_, err = svc.PersistInbound(context.Background(), other)
	assert.NoError(t, err)
}

func TestSendStatusTransitions(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store)

	pending, err := svc.CreatePending(context.Background(), "c1", "bom dia")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, pending.Status)
	assert.Equal(t, SenderAgent, pending.Sender)

	sent, err := svc.MarkSent(context.Background(), pending.ID, "GW-9")
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)
	assert.Equal(t, "GW-9", sent.GatewayMessageID)

	// SENT cannot transition again through the send path.
	_, err = svc.MarkSent(context.Background(), pending.ID, "GW-10")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.MarkError(context.Background(), pending.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkErrorOnlyFromPending(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store)

	pending, err := svc.CreatePending(context.Background(), "c1", "oi")
	require.NoError(t, err)

	failed, err := svc.MarkError(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, failed.Status)
}

func TestMarkReadOnlyFromReceived(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store)

	inbound, err := svc.PersistInbound(context.Background(), InboundInput{
		ConversationID:   "c1",
		Sender:           SenderPatient,
		Content:          "oi",
		Kind:             evolution.KindText,
		GatewayMessageID: "GW-1",
		Timestamp:        time.Now().UTC(),
	})
	require.NoError(t, err)

	read, err := svc.MarkRead(context.Background(), "c1", inbound.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRead, read.Status)

	_, err = svc.MarkRead(context.Background(), "c1", inbound.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	pending, err := svc.CreatePending(context.Background(), "c1", "resposta")
	require.NoError(t, err)
	_, err = svc.MarkRead(context.Background(), "c1", pending.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "outbound messages are never marked read")
}

func TestMarkReadScopedToConversation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store)

	inbound, err := svc.PersistInbound(context.Background(), InboundInput{
		ConversationID:   "c1",
		Sender:           SenderPatient,
		Content:          "oi",
		Kind:             evolution.KindText,
		GatewayMessageID: "GW-1",
		Timestamp:        time.Now().UTC(),
	})
	require.NoError(t, err)

	// A caller authorized for another conversation cannot reach this
	// message through it.
	_, err = svc.MarkRead(context.Background(), "c2", inbound.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, StatusReceived, store.messages[inbound.ID].Status)
}

func TestHistoryPagination(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 45; i++ {
		_, err := svc.PersistInbound(context.Background(), InboundInput{
			ConversationID:   "c1",
			Sender:           SenderPatient,
			Content:          fmt.Sprintf("m%d", i),
			Kind:             evolution.KindText,
			GatewayMessageID: fmt.Sprintf("GW-%d", i),
			Timestamp:        base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	page, hasMore, err := svc.History(context.Background(), "c1", nil, 0)
	require.NoError(t, err)
	assert.Len(t, page, DefaultHistoryLimit)
	assert.True(t, hasMore)
	assert.Equal(t, "m44", page[0].Content, "newest first")

	cursor := page[len(page)-1].CreatedAt
	rest, hasMore, err := svc.History(context.Background(), "c1", &cursor, 0)
	require.NoError(t, err)
	assert.Len(t, rest, 5)
	assert.False(t, hasMore)
}

func TestHistoryClampsLimit(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := NewService(nil, store)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := svc.PersistInbound(context.Background(), InboundInput{
			ConversationID:   "c1",
			Sender:           SenderPatient,
			Content:          fmt.Sprintf("m%d", i),
			Kind:             evolution.KindText,
			GatewayMessageID: fmt.Sprintf("GW-%d", i),
			Timestamp:        base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	page, hasMore, err := svc.History(context.Background(), "c1", nil, 100000)
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.False(t, hasMore)
}

func TestPreviewLine(t *testing.T) {
	t.Parallel()

	withText := Message{Content: "oi", Kind: evolution.KindText}
	assert.Equal(t, "oi", withText.PreviewLine())

	mediaOnly := Message{Kind: evolution.KindAudio}
	assert.Equal(t, "[audio]", mediaOnly.PreviewLine())
}
