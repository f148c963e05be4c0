package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/abeme/go_chat_api/service"
	"github.com/abeme/go_chat_api/ws"
)

type MessageController struct {
	chatSvc service.ChatService
	userSvc service.UserService
	hub     *ws.Hub
}

func NewMessageController(chatSvc service.ChatService, userSvc service.UserService, hub *ws.Hub) *MessageController {
	return &MessageController{chatSvc: chatSvc, userSvc: userSvc, hub: hub}
}

// ListConversation returns the message history between the
// authenticated user and the other user, oldest first.
func (m *MessageController) ListConversation(c *gin.Context) {
	uidVal, _ := c.Get("user_id")
	userID, _ := uidVal.(string)
	otherUserID := c.Param("userId")
	if otherUserID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user ids"})
		return
	}
	if otherUserID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot get messages with yourself"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	msgs, chat, err := m.chatSvc.ListConversation(c.Request.Context(), userID, otherUserID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var chatID interface{}
	if chat != nil {
		chatID = chat.ID
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "chatId": chatID})
}

// ListChats returns the authenticated user's chat list, most recent
// activity first, projected with the other participant's profile.
func (m *MessageController) ListChats(c *gin.Context) {
	uidVal, _ := c.Get("user_id")
	userID, _ := uidVal.(string)
	summaries, err := m.chatSvc.ListChats(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	chats := make([]gin.H, 0, len(summaries))
	for _, s := range summaries {
		entry := gin.H{
			"chatId":        s.ChatID,
			"lastMessage":   s.LastMessage,
			"lastMessageAt": s.LastMessageAt,
		}
		if u, err := m.userSvc.GetByID(c.Request.Context(), s.OtherUserID); err == nil {
			entry["otherUser"] = gin.H{
				"id":       u.ID,
				"username": u.Username,
				"email":    u.Email,
				"isOnline": u.IsOnline,
				"lastSeen": u.LastSeen,
			}
		} else {
			entry["otherUser"] = gin.H{"id": s.OtherUserID}
		}
		chats = append(chats, entry)
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

type markReadRequest struct {
	MessageID uint `json:"messageId" binding:"required"`
}

// MarkRead marks a message as read over REST and pushes the same
// websocket receipt to the sender as the realtime path does.
func (m *MessageController) MarkRead(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	uidVal, _ := c.Get("user_id")
	userID, _ := uidVal.(string)
	msg, err := m.chatSvc.MarkMessageRead(c.Request.Context(), req.MessageID, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNotReceiver):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	if msg.ReadAt != nil {
		m.hub.SendToUser(msg.SenderID, ws.ReadReceipt(msg.ID, *msg.ReadAt))
	}
	c.JSON(http.StatusOK, gin.H{"messageId": msg.ID, "readAt": msg.ReadAt})
}
