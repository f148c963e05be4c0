package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/abeme/go_chat_api/service"
	"github.com/abeme/go_chat_api/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// verification must finish inside this window; a connection that cannot
// be verified in time is rejected before any state is created
const verifyTimeout = 5 * time.Second

// bearerToken pulls the credential from the Authorization header, or
// from the token query parameter for clients that cannot set headers on
// the websocket handshake.
func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

// ServeWS authenticates the connection, upgrades it, registers the
// client with the hub and starts the pumps. Verification runs before
// any per-connection state exists: a failed connection is closed with no
// side effects.
func ServeWS(h *Hub, chatSvc service.ChatService, userSvc service.UserService, c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no token provided"})
		return
	}
	claims, err := utils.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), verifyTimeout)
	defer cancel()
	user, err := userSvc.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		slog.Error("verify connection", "user", claims.Subject, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("upgrade failed", "user", user.ID, "err", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		userID:   user.ID,
		username: user.Username,
		chatSvc:  chatSvc,
	}
	h.RegisterClient(client)
	go client.Serve()
}
