package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/chinmaysolanki/dost-ai/internal/api/handlers"
	"github.com/chinmaysolanki/dost-ai/internal/api/middleware"
)

type Deps struct {
	JWTSecret string

	Chat         *handlers.ChatHandler
	User         *handlers.UserHandler
	Conversation *handlers.ConversationHandler
	Status       *handlers.StatusHandler
	WS           *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", d.Status.Ping)
	r.GET("/health", d.Status.Health)
	r.GET("/status", d.Status.Status)
	r.GET("/models", d.Status.Models)

	// Account creation and login stay public
	r.POST("/users", d.User.Register)
	r.POST("/auth/login", d.User.Login)

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.JWTSecret))

	auth.POST("/chat", d.Chat.Chat)
	auth.GET("/conversations/:session_id", d.Conversation.ListBySession)
	auth.GET("/archives", d.Conversation.ListArchived)
	auth.GET("/archives/:session_id", d.Conversation.GetArchived)

	auth.GET("/users/:user_id", d.User.Get)
	auth.PUT("/users/:user_id/preferences", d.User.UpdatePreferences)
	auth.POST("/users/:user_id/retire", middleware.RequireAdmin(), d.User.Retire)

	// WebSocket
	auth.GET("/ws", d.WS.Stream)
}
