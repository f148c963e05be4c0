package entity

import "time"

// User is the durable profile record. IsOnline and LastSeen are a
// persisted projection of the in-memory presence registry, written on
// connect/disconnect transitions.
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;size:64"`
	Username     string     `json:"username" gorm:"uniqueIndex;size:64"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:191"`
	PasswordHash string     `json:"-" gorm:"size:191"`
	IsOnline     bool       `json:"is_online"`
	LastSeen     *time.Time `json:"last_seen"`
	CreatedAt    time.Time  `json:"created_at"`
}

type SignUpRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}
