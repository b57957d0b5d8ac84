package handler

import (
	"net/http"

	"parley/internal/services"
	"parley/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// RealtimeHandler exposes typing and presence for clients without a socket.
type RealtimeHandler struct {
	typing   *services.TypingService
	presence *services.PresenceService
}

func NewRealtimeHandler(typing *services.TypingService, presence *services.PresenceService) *RealtimeHandler {
	return &RealtimeHandler{typing: typing, presence: presence}
}

func (h *RealtimeHandler) SetTyping(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "invalid request", err)
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.typing.SetTyping(c.Request.Context(), userID, conversationID, req.IsTyping); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RealtimeHandler) TypingUsers(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	profiles, err := h.typing.ListTypingUsers(c.Request.Context(), conversationID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"typing": profiles}))
}

func (h *RealtimeHandler) Heartbeat(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.presence.Heartbeat(c.Request.Context(), userID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RealtimeHandler) OnlineUsers(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	profiles, err := h.presence.ListOnlineUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"online": profiles}))
}

func (h *RealtimeHandler) UserPresence(c *gin.Context) {
	targetID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if _, ok := currentUser(c); !ok {
		return
	}
	online, err := h.presence.IsOnline(c.Request.Context(), targetID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"user_id": targetID, "online": online}))
}
