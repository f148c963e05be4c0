package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/abeme/go_chat_api/entity"
)

var (
	ErrMissingReceiver    = errors.New("receiver is required")
	ErrEmptyContent       = errors.New("message content cannot be empty")
	ErrSelfMessage        = errors.New("cannot send message to yourself")
	ErrMessageNotFound    = errors.New("message not found")
	ErrNotReceiver        = errors.New("only the receiver can mark this message read")
	ErrMissingParticipant = errors.New("chat requires two participants")
	ErrSameParticipant    = errors.New("chat participants must be distinct")
)

// ChatService defines operations over 1:1 chats and their messages.
type ChatService interface {
	GetOrCreateChat(ctx context.Context, userA, userB string) (*entity.Chat, error)
	SendMessage(ctx context.Context, senderID, receiverID, content string) (*entity.Message, error)
	MarkMessageRead(ctx context.Context, messageID uint, userID string) (*entity.Message, error)
	ListConversation(ctx context.Context, userID, otherUserID string, limit int) ([]entity.Message, *entity.Chat, error)
	ListChats(ctx context.Context, userID string) ([]ChatSummary, error)
}

// ChatSummary is one row of a user's chat list: the chat, who the other
// side is, and the most recent message if any.
type ChatSummary struct {
	ChatID        uint            `json:"chatId"`
	OtherUserID   string          `json:"otherUserId"`
	LastMessage   *entity.Message `json:"lastMessage"`
	LastMessageAt *time.Time      `json:"lastMessageAt"`
}

type DBChatService struct {
	db *gorm.DB

	// mu guards pairs; each pair mutex serializes get-or-create for one
	// canonical participant pair so two concurrent first messages cannot
	// race a duplicate chat past the unique index. The map only grows:
	// one entry per pair that ever exchanged a message in this process.
	mu    sync.Mutex
	pairs map[string]*sync.Mutex
}

func NewChatService(db *gorm.DB) *DBChatService {
	return &DBChatService{db: db, pairs: make(map[string]*sync.Mutex)}
}

// canonicalPair orders two user ids deterministically. The sorted pair
// is the uniqueness key for a chat.
func canonicalPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

func (s *DBChatService) pairMutex(pa, pb string) *sync.Mutex {
	key := pa + "|" + pb
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.pairs[key]
	if !ok {
		m = &sync.Mutex{}
		s.pairs[key] = m
	}
	return m
}

// getOrCreateChat looks up the chat for an already-canonical pair,
// creating it on first contact. Callers must hold the pair mutex.
func getOrCreateChat(tx *gorm.DB, pa, pb string) (*entity.Chat, error) {
	var chat entity.Chat
	err := tx.Where("participant_a = ? AND participant_b = ?", pa, pb).First(&chat).Error
	if err == nil {
		return &chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	chat = entity.Chat{ParticipantA: pa, ParticipantB: pb}
	if err := tx.Create(&chat).Error; err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *DBChatService) GetOrCreateChat(ctx context.Context, userA, userB string) (*entity.Chat, error) {
	if userA == "" || userB == "" {
		return nil, ErrMissingParticipant
	}
	if userA == userB {
		return nil, ErrSameParticipant
	}
	pa, pb := canonicalPair(userA, userB)
	mu := s.pairMutex(pa, pb)
	mu.Lock()
	defer mu.Unlock()
	return getOrCreateChat(s.db.WithContext(ctx), pa, pb)
}

// SendMessage validates, persists and links a new message. The chat
// upsert, message insert and last-message update commit together, so
// readers never observe one without the others.
func (s *DBChatService) SendMessage(ctx context.Context, senderID, receiverID, content string) (*entity.Message, error) {
	if receiverID == "" {
		return nil, ErrMissingReceiver
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}

	pa, pb := canonicalPair(senderID, receiverID)
	mu := s.pairMutex(pa, pb)
	mu.Lock()
	defer mu.Unlock()

	var msg *entity.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chat, err := getOrCreateChat(tx, pa, pb)
		if err != nil {
			return err
		}
		m := &entity.Message{
			ChatID:     chat.ID,
			SenderID:   senderID,
			ReceiverID: receiverID,
			Content:    content,
		}
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		if err := tx.Model(&entity.Chat{}).Where("id = ?", chat.ID).
			Updates(map[string]interface{}{"last_message_id": m.ID, "last_message_at": m.CreatedAt}).Error; err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkMessageRead flips the read flag. Only the receiver may do this.
// Re-marking an already-read message succeeds and keeps the original
// read timestamp (first-read-wins).
func (s *DBChatService) MarkMessageRead(ctx context.Context, messageID uint, userID string) (*entity.Message, error) {
	var m entity.Message
	if err := s.db.WithContext(ctx).First(&m, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if m.ReceiverID != userID {
		return nil, ErrNotReceiver
	}
	if m.IsRead {
		return &m, nil
	}
	// Conditional flip so two racing mark-reads cannot both stamp the
	// row: whoever loses the race reloads the winner's timestamp.
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&entity.Message{}).
		Where("id = ? AND is_read = ?", m.ID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if err := s.db.WithContext(ctx).First(&m, messageID).Error; err != nil {
			return nil, err
		}
		return &m, nil
	}
	m.IsRead = true
	m.ReadAt = &now
	return &m, nil
}

// ListConversation returns the most recent messages between two users in
// chronological order, plus the chat record (nil if they never talked).
func (s *DBChatService) ListConversation(ctx context.Context, userID, otherUserID string, limit int) ([]entity.Message, *entity.Chat, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	pa, pb := canonicalPair(userID, otherUserID)
	var chat entity.Chat
	err := s.db.WithContext(ctx).Where("participant_a = ? AND participant_b = ?", pa, pb).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []entity.Message{}, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var msgs []entity.Message
	if err := s.db.WithContext(ctx).Where("chat_id = ?", chat.ID).
		Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, nil, err
	}
	// newest-first from the query; reverse to chronological
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, &chat, nil
}

// ListChats returns the user's chats ordered by most recent activity.
func (s *DBChatService) ListChats(ctx context.Context, userID string) ([]ChatSummary, error) {
	var chats []entity.Chat
	if err := s.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("last_message_at DESC").Find(&chats).Error; err != nil {
		return nil, err
	}
	summaries := make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		sum := ChatSummary{
			ChatID:        c.ID,
			OtherUserID:   c.OtherParticipant(userID),
			LastMessageAt: c.LastMessageAt,
		}
		if c.LastMessageID != nil {
			var m entity.Message
			if err := s.db.WithContext(ctx).First(&m, *c.LastMessageID).Error; err == nil {
				sum.LastMessage = &m
			}
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}
