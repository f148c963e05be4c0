package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/abeme/go_chat_api/entity"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrUserNotFound = errors.New("user not found")
)

// UserService interface abstracts user ops
type UserService interface {
	CreateUser(ctx context.Context, username, email, password string) (*entity.User, error)
	Authenticate(ctx context.Context, email, password string) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	ListOthers(ctx context.Context, userID string) ([]entity.User, error)
	ListOnline(ctx context.Context, userID string) ([]entity.User, error)
	SetPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error
}

type DBUserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *DBUserService {
	return &DBUserService{db: db}
}

func (s *DBUserService) CreateUser(ctx context.Context, username, email, password string) (*entity.User, error) {
	var cnt int64
	if err := s.db.WithContext(ctx).Model(&entity.User{}).
		Where("email = ? OR username = ?", email, username).Count(&cnt).Error; err != nil {
		return nil, err
	}
	if cnt > 0 {
		return nil, ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (s *DBUserService) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	var u entity.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCreds
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCreds
	}
	return &u, nil
}

func (s *DBUserService) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var u entity.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ListOthers returns every user except userID, ordered by username.
func (s *DBUserService) ListOthers(ctx context.Context, userID string) ([]entity.User, error) {
	var users []entity.User
	if err := s.db.WithContext(ctx).Where("id <> ?", userID).
		Order("username ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListOnline returns users whose persisted online flag is set, except userID.
func (s *DBUserService) ListOnline(ctx context.Context, userID string) ([]entity.User, error) {
	var users []entity.User
	if err := s.db.WithContext(ctx).Where("is_online = ? AND id <> ?", true, userID).
		Order("username ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SetPresence writes the durable projection of a presence transition.
// lastSeen is captured by the caller at the moment of the transition.
func (s *DBUserService) SetPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	return s.db.WithContext(ctx).Model(&entity.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_online": online, "last_seen": lastSeen}).Error
}
