package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/abeme/go_chat_api/config"
	"github.com/abeme/go_chat_api/controller"
	"github.com/abeme/go_chat_api/entity"
	"github.com/abeme/go_chat_api/middleware"
	"github.com/abeme/go_chat_api/service"
	"github.com/abeme/go_chat_api/ws"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	r := gin.Default()

	slog.Info("opening database", "file", cfg.DBFile)
	db, err := gorm.Open(sqlite.Open(cfg.DBFile), &gorm.Config{})
	if err != nil {
		slog.Error("failed to open sqlite db", "err", err)
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Chat{},
		&entity.Message{},
	); err != nil {
		slog.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	// services
	userSvc := service.NewUserService(db)
	chatSvc := service.NewChatService(db)

	// presence hub (init before controllers needing it)
	hub := ws.NewHub(rdb, userSvc)

	// controllers
	authCtrl := controller.NewAuthController(userSvc)
	msgCtrl := controller.NewMessageController(chatSvc, userSvc, hub)
	userCtrl := controller.NewUserController(userSvc)

	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "Server is running"})
	})

	r.POST("/signup", authCtrl.SignUp)
	r.POST("/login", authCtrl.Login)

	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware())
	protected.GET("/messages/chats/list", msgCtrl.ListChats)
	protected.GET("/messages/:userId", msgCtrl.ListConversation)
	protected.POST("/messages/read", msgCtrl.MarkRead)
	protected.GET("/users", userCtrl.List)
	protected.GET("/users/online", userCtrl.ListOnline)
	protected.GET("/users/:userId", userCtrl.Get)

	// ws endpoint
	r.GET("/ws", func(c *gin.Context) {
		ws.ServeWS(hub, chatSvc, userSvc, c)
	})

	slog.Info("starting server", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}
