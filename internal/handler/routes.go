package handler

import "github.com/gin-gonic/gin"

type Handlers struct {
	Conversations *ConversationHandler
	Messages      *MessageHandler
	Realtime      *RealtimeHandler
}

// Register mounts the API on an authenticated group.
func (h *Handlers) Register(api *gin.RouterGroup) {
	conversations := api.Group("/conversations")
	{
		conversations.POST("", h.Conversations.Create)
		conversations.POST("/direct", h.Conversations.StartDirect)
		conversations.GET("", h.Conversations.List)
		conversations.GET("/:id", h.Conversations.GetByID)
		conversations.DELETE("/:id", h.Conversations.Delete)
		conversations.GET("/:id/participants", h.Conversations.Participants)

		conversations.GET("/:id/messages", h.Messages.List)
		conversations.POST("/:id/messages", h.Messages.Send)
		conversations.GET("/:id/messages/search", h.Messages.Search)
		conversations.POST("/:id/read", h.Messages.MarkRead)
		conversations.POST("/:id/delivered", h.Messages.MarkDelivered)

		conversations.PUT("/:id/typing", h.Realtime.SetTyping)
		conversations.GET("/:id/typing", h.Realtime.TypingUsers)
	}

	messages := api.Group("/messages")
	{
		messages.POST("/direct", h.Messages.SendDirect)
		messages.GET("/:id", h.Messages.GetByID)
		messages.PATCH("/:id", h.Messages.Edit)
		messages.DELETE("/:id", h.Messages.Delete)
		messages.GET("/:id/replies", h.Messages.Replies)
		messages.GET("/:id/reactions", h.Messages.Reactions)
		messages.POST("/:id/reactions", h.Messages.ToggleReaction)
	}

	presence := api.Group("/presence")
	{
		presence.POST("/heartbeat", h.Realtime.Heartbeat)
		presence.GET("/online", h.Realtime.OnlineUsers)
		presence.GET("/users/:id", h.Realtime.UserPresence)
	}
}
