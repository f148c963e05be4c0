package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abeme/go_chat_api/service"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// bound on any single store call made on behalf of this connection
	opTimeout = 10 * time.Second
)

// Client is one authenticated websocket connection. Events from its
// read pump are handled strictly in receipt order.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	userID   string
	username string
	chatSvc  service.ChatService
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { _ = c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("read error", "user", c.userID, "err", err)
			}
			break
		}
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			c.send <- errorEvent("invalid event payload")
			continue
		}
		switch env.Type {
		case EventSendMessage:
			c.handleSend(raw)
		case EventMarkMessageRead:
			c.handleMarkRead(raw)
		case EventTypingStart:
			c.handleTyping(raw, true)
		case EventTypingStop:
			c.handleTyping(raw, false)
		default:
			c.send <- errorEvent("unsupported event type")
		}
	}
}

// handleSend persists the message, always acks the sender with the
// stored record, and pushes to the receiver only if reachable right now.
// There is no queued delivery for absent receivers.
func (c *Client) handleSend(raw []byte) {
	var p SendMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.send <- errorEvent("invalid event payload")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	msg, err := c.chatSvc.SendMessage(ctx, c.userID, p.ReceiverID, p.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingReceiver),
			errors.Is(err, service.ErrEmptyContent),
			errors.Is(err, service.ErrSelfMessage):
			c.send <- errorEvent(err.Error())
		default:
			slog.Error("send message", "user", c.userID, "err", err)
			c.send <- errorEvent("failed to send message")
		}
		return
	}
	payload := NewMessagePayload(msg)
	c.send <- marshalEvent(MessageEvent{Type: EventMessageSent, Message: payload})
	if c.hub.Reachable(msg.ReceiverID) {
		c.hub.SendToUser(msg.ReceiverID, marshalEvent(MessageEvent{Type: EventMessageReceived, Message: payload}))
	}
}

// handleMarkRead applies the read receipt, acks the requester, and
// notifies the original sender if reachable.
func (c *Client) handleMarkRead(raw []byte) {
	var p MarkReadPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.send <- errorEvent("invalid event payload")
		return
	}
	if err := validate.Struct(&p); err != nil {
		c.send <- errorEvent("message id is required")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	msg, err := c.chatSvc.MarkMessageRead(ctx, p.MessageID, c.userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			c.send <- errorEvent("message not found")
		case errors.Is(err, service.ErrNotReceiver):
			c.send <- errorEvent("unauthorized to mark this message as read")
		default:
			slog.Error("mark message read", "user", c.userID, "message", p.MessageID, "err", err)
			c.send <- errorEvent("failed to mark message as read")
		}
		return
	}
	c.send <- marshalEvent(MarkedReadEvent{Type: EventMessageMarkedRead, MessageID: msg.ID})
	if msg.ReadAt != nil && c.hub.Reachable(msg.SenderID) {
		c.hub.SendToUser(msg.SenderID, marshalEvent(ReadReceiptEvent{
			Type:      EventMessageRead,
			MessageID: msg.ID,
			ReadAt:    *msg.ReadAt,
		}))
	}
}

// handleTyping relays the signal to the receiver if reachable. It is
// never persisted, queued or acknowledged.
func (c *Client) handleTyping(raw []byte, isTyping bool) {
	var p TypingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.send <- errorEvent("invalid event payload")
		return
	}
	if err := validate.Struct(&p); err != nil {
		c.send <- errorEvent("receiver id is required")
		return
	}
	if p.ReceiverID == c.userID {
		c.send <- errorEvent("cannot send typing signal to yourself")
		return
	}
	if c.hub.Reachable(p.ReceiverID) {
		c.hub.SendToUser(p.ReceiverID, marshalEvent(TypingEvent{
			Type:     EventUserTyping,
			UserID:   c.userID,
			IsTyping: isTyping,
		}))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker((pongWait * 9) / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) Serve() {
	go c.writePump()
	c.readPump()
}
