package entity

import "time"

// Chat is the 1:1 conversation between two users. ParticipantA and
// ParticipantB hold the canonical (sorted) pair; the composite unique
// index guarantees at most one chat per pair regardless of who messaged
// first.
type Chat struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	ParticipantA  string     `json:"participant_a" gorm:"size:64;uniqueIndex:idx_chat_pair,priority:1"`
	ParticipantB  string     `json:"participant_b" gorm:"size:64;uniqueIndex:idx_chat_pair,priority:2"`
	LastMessageID *uint      `json:"last_message_id"`
	LastMessageAt *time.Time `json:"last_message_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// OtherParticipant returns the participant that is not userID.
func (c *Chat) OtherParticipant(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}
