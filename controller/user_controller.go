package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abeme/go_chat_api/entity"
	"github.com/abeme/go_chat_api/service"
)

type UserController struct {
	svc service.UserService
}

func NewUserController(svc service.UserService) *UserController {
	return &UserController{svc: svc}
}

func userJSON(u *entity.User) gin.H {
	return gin.H{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"isOnline": u.IsOnline,
		"lastSeen": u.LastSeen,
	}
}

// List returns every user except the caller, for building a chat list.
func (uc *UserController) List(c *gin.Context) {
	uidVal, _ := c.Get("user_id")
	userID, _ := uidVal.(string)
	users, err := uc.svc.ListOthers(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, 0, len(users))
	for i := range users {
		out = append(out, userJSON(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// ListOnline returns currently-online users except the caller.
func (uc *UserController) ListOnline(c *gin.Context) {
	uidVal, _ := c.Get("user_id")
	userID, _ := uidVal.(string)
	users, err := uc.svc.ListOnline(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, 0, len(users))
	for i := range users {
		out = append(out, userJSON(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// Get returns one user's profile.
func (uc *UserController) Get(c *gin.Context) {
	u, err := uc.svc.GetByID(c.Request.Context(), c.Param("userId"))
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userJSON(u)})
}
