package ws

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/abeme/go_chat_api/entity"
)

// Inbound event types.
const (
	EventSendMessage     = "send_message"
	EventMarkMessageRead = "mark_message_read"
	EventTypingStart     = "typing_start"
	EventTypingStop      = "typing_stop"
)

// Outbound event types.
const (
	EventMessageSent       = "message_sent"
	EventMessageReceived   = "message_received"
	EventMessageRead       = "message_read"
	EventMessageMarkedRead = "message_marked_read"
	EventUserTyping        = "user_typing"
	EventUserOnline        = "user_online"
	EventUserOffline       = "user_offline"
	EventError             = "error"
)

var validate = validator.New()

// SendMessagePayload is the send_message request. Field-level checks
// happen in the chat service so each failure maps to its own error.
type SendMessagePayload struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

type MarkReadPayload struct {
	MessageID uint `json:"messageId" validate:"required"`
}

type TypingPayload struct {
	ReceiverID string `json:"receiverId" validate:"required"`
}

// MessagePayload is the wire shape of a persisted message.
type MessagePayload struct {
	ID         uint       `json:"id"`
	ChatID     uint       `json:"chatId"`
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	Content    string     `json:"content"`
	IsRead     bool       `json:"isRead"`
	ReadAt     *time.Time `json:"readAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func NewMessagePayload(m *entity.Message) MessagePayload {
	return MessagePayload{
		ID:         m.ID,
		ChatID:     m.ChatID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		IsRead:     m.IsRead,
		ReadAt:     m.ReadAt,
		CreatedAt:  m.CreatedAt,
	}
}

// MessageEvent carries a full message: message_sent to the sender,
// message_received to the receiver.
type MessageEvent struct {
	Type    string         `json:"type"`
	Message MessagePayload `json:"message"`
}

// ReadReceiptEvent notifies the original sender that their message was
// read.
type ReadReceiptEvent struct {
	Type      string    `json:"type"`
	MessageID uint      `json:"messageId"`
	ReadAt    time.Time `json:"readAt"`
}

// MarkedReadEvent acknowledges a mark_message_read request.
type MarkedReadEvent struct {
	Type      string `json:"type"`
	MessageID uint   `json:"messageId"`
}

type TypingEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// PresenceEvent announces an online/offline transition to every other
// active connection. LastSeen is set on user_offline only.
type PresenceEvent struct {
	Type     string     `json:"type"`
	UserID   string     `json:"userId"`
	Username string     `json:"username"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func marshalEvent(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}

func errorEvent(msg string) []byte {
	return marshalEvent(ErrorEvent{Type: EventError, Message: msg})
}

// ReadReceipt builds a message_read payload for hub delivery. The REST
// mark-read path uses it to emit the same receipt as the realtime path.
func ReadReceipt(messageID uint, readAt time.Time) []byte {
	return marshalEvent(ReadReceiptEvent{Type: EventMessageRead, MessageID: messageID, ReadAt: readAt})
}
