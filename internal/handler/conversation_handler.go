package handler

import (
	"net/http"

	"parley/internal/services"
	"parley/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "invalid request", err)
		return
	}
	creatorID, ok := currentUser(c)
	if !ok {
		return
	}

	memberIDs := make([]uuid.UUID, 0, len(req.ParticipantIDs))
	for _, raw := range req.ParticipantIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			invalid(c, "invalid participant id", err)
			return
		}
		memberIDs = append(memberIDs, id)
	}

	conv, err := h.service.Create(c.Request.Context(), creatorID, memberIDs...)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(conv))
}

// StartDirect returns the direct conversation with another user, creating it
// on first contact.
func (h *ConversationHandler) StartDirect(c *gin.Context) {
	var req httpdto.StartDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "invalid request", err)
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	otherID, err := uuid.Parse(req.UserID)
	if err != nil {
		invalid(c, "invalid user_id", err)
		return
	}

	conv, err := h.service.StartDirect(c.Request.Context(), userID, otherID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.service.List(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"conversations": items}))
}

func (h *ConversationHandler) GetByID(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conv, err := h.service.Get(c.Request.Context(), conversationID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(conv))
}

func (h *ConversationHandler) Participants(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	profiles, err := h.service.Participants(c.Request.Context(), conversationID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"participants": profiles}))
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), conversationID, userID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
