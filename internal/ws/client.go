package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clinwave/clinwave/internal/auth"
	"github.com/clinwave/clinwave/internal/message"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 32 * 1024
	sendBufferSize = 64
)

// clientFrame is the envelope of every client-initiated frame.
type clientFrame struct {
	Op   string          `json:"op"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ack answers a client frame, correlated by the frame id.
type ack struct {
	Op      string `json:"op"`
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type historyRequest struct {
	ConversationID string     `json:"conversation_id"`
	Before         *time.Time `json:"before,omitempty"`
	Limit          int        `json:"limit,omitempty"`
}

type historyResponse struct {
	Messages []message.Message `json:"messages"`
	HasMore  bool              `json:"has_more"`
}

type joinRequest struct {
	ConversationID string `json:"conversation_id"`
}

type sendRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

type readRequest struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// Client is one authenticated websocket connection. The session tenant is
// fixed at upgrade time and scopes every operation the socket performs.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	api     ChatAPI
	session auth.Session
	logger  *slog.Logger

	// sendMu serializes enqueue against close so no goroutine can send
	// on the channel after it is closed. Emit evicts slow clients
	// concurrently with the read pump replying on the same channel.
	sendMu sync.Mutex
	closed bool
	send   chan []byte
}

// NewClient wraps an upgraded connection. The caller must invoke Run to
// start the pumps.
func NewClient(hub *Hub, conn *websocket.Conn, api ChatAPI, session auth.Session, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		hub:     hub,
		conn:    conn,
		api:     api,
		session: session,
		logger: log.With(
			slog.String("service", "ws"),
			slog.String("tenant_id", session.TenantID),
			slog.String("agent_id", session.AgentID),
		),
		send: make(chan []byte, sendBufferSize),
	}
}

// Run registers the client and blocks until the connection closes.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer func() {
		c.hub.Unregister(c)
		c.close()
	}()

	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) enqueue(frame []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxFrameBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("socket read failed", slog.Any("error", err))
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.reply(ack{Op: "error", Success: false, Error: "malformed frame"})
			continue
		}
		c.dispatch(ctx, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(ctx context.Context, frame clientFrame) {
	switch frame.Op {
	case OpFeedJoin:
		c.hub.Join(FeedRoom(c.session.TenantID), c)
		c.reply(ack{Op: frame.Op, ID: frame.ID, Success: true})

	case OpConversationJoin:
		var req joinRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.ConversationID == "" {
			c.reply(ack{Op: frame.Op, ID: frame.ID, Success: false, Error: "conversation_id is required"})
			return
		}
		if err := c.api.VerifyConversation(ctx, c.session.TenantID, req.ConversationID); err != nil {
			c.reply(ack{Op: frame.Op, ID: frame.ID, Success: false, Error: "conversation not found"})
			return
		}
		c.hub.Join(ConversationRoom(c.session.TenantID, req.ConversationID), c)
		c.reply(ack{Op: frame.Op, ID: frame.ID, Success: true})

	case OpConversationHistory:
		var req historyRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.ConversationID == "" {
			c.reply(ack{Op: frame.Op, ID: frame.ID, Success: false, Error: "conversation_id is required"})
			return
		}
		msgs, hasMore, err := c.api.History(ctx, c.session.TenantID, req.ConversationID, req.Before, req.Limit)
		if err != nil {
			c.reply(ack{Op: frame.Op, ID: frame.ID, Success: false, Error: "history unavailable"})
			return
		}
		c.reply(ack{Op: frame.Op, ID: frame.ID, Success: true, Data: historyResponse{Messages: msgs, HasMore: hasMore}})

	case OpMessageSend:
		var req sendRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.ConversationID == "" || req.Content == "" {
			c.reply(ack{Op: frame.Op, ID: frame.ID, Success: false, Error: "conversation_id and content are required"})
			return
		}
		msg, err := c.api.Send(ctx, c.session.TenantID, req.ConversationID, req.Content)
		if err != nil {
			c.logger.Warn("socket send failed",
				slog.String("conversation_id", req.ConversationID), slog.Any("error", err))
			c.reply(ack{Op: frame.Op, ID: frame.ID, Success: false, Error: "send failed"})
			return
		}
		c.reply(ack{Op: frame.Op, ID: frame.ID, Success: true, Data: msg})

	case OpMessageRead:
		var req readRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.MessageID == "" {
			c.reply(ack{Op: frame.Op, ID: frame.ID, Success: false, Error: "message_id is required"})
			return
		}
		if err := c.api.MarkRead(ctx, c.session.TenantID, req.ConversationID, req.MessageID); err != nil {
			c.reply(ack{Op: frame.Op, ID: frame.ID, Success: false, Error: "mark read failed"})
			return
		}
		c.reply(ack{Op: frame.Op, ID: frame.ID, Success: true})

	default:
		c.reply(ack{Op: frame.Op, ID: frame.ID, Success: false, Error: "unknown operation"})
	}
}

func (c *Client) reply(a ack) {
	frame, err := json.Marshal(a)
	if err != nil {
		return
	}
	if !c.enqueue(frame) {
		c.logger.Warn("reply dropped, client too slow")
	}
}
