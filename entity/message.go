package entity

import "time"

// Message is one directed text message. SenderID and ReceiverID
// reference User.ID (string). ReadAt is null until the receiver marks
// the message as read.
type Message struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	ChatID     uint       `json:"chat_id" gorm:"index"`
	SenderID   string     `json:"sender_id" gorm:"index;size:64"`
	ReceiverID string     `json:"receiver_id" gorm:"index;size:64"`
	Content    string     `json:"content" gorm:"type:text"`
	IsRead     bool       `json:"is_read"`
	ReadAt     *time.Time `json:"read_at"`
	CreatedAt  time.Time  `json:"created_at"`
}
