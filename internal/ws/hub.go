package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/clinwave/clinwave/internal/message"
)

// Hub tracks connected clients and their room memberships, and fans events
// out to rooms. It is safe for concurrent use and is constructed once at
// startup and injected where publishing is needed.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		logger:  log.With(slog.String("service", "ws")),
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]map[string]struct{}),
	}
}

// Register adds a connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = make(map[string]struct{})
}

// Unregister removes a client from every room and drops it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// Join adds a client to a room.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	h.clients[c][room] = struct{}{}
}

// Emit sends an event to every client in a room. Clients whose send buffer
// is full are dropped rather than blocking the emitter.
func (h *Hub) Emit(room, event string, data any) {
	frame, err := json.Marshal(serverEvent{Event: event, Data: data})
	if err != nil {
		h.logger.Warn("marshal event failed",
			slog.String("event", event), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if !c.enqueue(frame) {
			h.logger.Warn("dropping slow client", slog.String("room", room))
			h.Unregister(c)
			c.close()
		}
	}
}

// RoomSize reports the member count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// PublishMessage emits a new-message event to the conversation room.
func (h *Hub) PublishMessage(tenantID, conversationID string, msg message.Message) {
	h.Emit(ConversationRoom(tenantID, conversationID), EventNewMessage, msg)
}

// PublishPreview emits a conversation-list update to the tenant feed room.
func (h *Hub) PublishPreview(tenantID string, preview Preview) {
	h.Emit(FeedRoom(tenantID), EventConversationList, preview)
}

// PublishStatus emits a status transition to the conversation room.
func (h *Hub) PublishStatus(tenantID, conversationID string, change StatusChange) {
	h.Emit(ConversationRoom(tenantID, conversationID), EventMessageStatus, change)
}

func (h *Hub) dropLocked(c *Client) {
	rooms, ok := h.clients[c]
	if !ok {
		return
	}
	for room := range rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.clients, c)
}

type serverEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
