package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"parley/internal/services"
	"parley/internal/storage"
	"parley/internal/transport/httpdto"
	parley_errors "parley/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessageHandler struct {
	messages       *services.MessageService
	threads        *services.ThreadService
	reactions      *services.ReactionService
	chat           *services.ChatService
	maxUploadBytes int64
}

func NewMessageHandler(messages *services.MessageService, threads *services.ThreadService, reactions *services.ReactionService, chat *services.ChatService, maxUploadBytes int64) *MessageHandler {
	return &MessageHandler{
		messages:       messages,
		threads:        threads,
		reactions:      reactions,
		chat:           chat,
		maxUploadBytes: maxUploadBytes,
	}
}

// Send accepts JSON or multipart/form-data; multipart requests carry files
// under "attachments".
func (h *MessageHandler) Send(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.SendMessageRequest
	if err := c.ShouldBind(&req); err != nil {
		invalid(c, "invalid request", err)
		return
	}
	in, ok := h.sendInput(c, req)
	if !ok {
		return
	}
	in.ConversationID = conversationID

	msg, err := h.messages.Send(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(msg))
}

func (h *MessageHandler) SendDirect(c *gin.Context) {
	var req httpdto.SendDirectRequest
	if err := c.ShouldBind(&req); err != nil {
		invalid(c, "invalid request", err)
		return
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		invalid(c, "invalid recipient_id", err)
		return
	}
	in, ok := h.sendInput(c, req.SendMessageRequest)
	if !ok {
		return
	}

	msg, err := h.chat.SendDirect(c.Request.Context(), recipientID, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(msg))
}

func (h *MessageHandler) sendInput(c *gin.Context, req httpdto.SendMessageRequest) (services.SendMessageInput, bool) {
	senderID, ok := currentUser(c)
	if !ok {
		return services.SendMessageInput{}, false
	}
	parentID, err := parseNullUUID(req.ParentMessageID)
	if err != nil {
		invalid(c, "invalid parent_message_id", err)
		return services.SendMessageInput{}, false
	}
	uploads, err := h.readUploads(c)
	if err != nil {
		fail(c, err)
		return services.SendMessageInput{}, false
	}
	return services.SendMessageInput{
		SenderID:        senderID,
		Content:         req.Content,
		Attachments:     uploads,
		ParentMessageID: parentID,
		ClientMessageID: req.ClientMessageID,
	}, true
}

func (h *MessageHandler) readUploads(c *gin.Context) ([]storage.Upload, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("multipart form: %v: %w", err, parley_errors.ErrValidation)
	}
	files := form.File["attachments"]
	uploads := make([]storage.Upload, 0, len(files))
	for _, fh := range files {
		upload, err := h.readUpload(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func (h *MessageHandler) readUpload(fh *multipart.FileHeader) (storage.Upload, error) {
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		return storage.Upload{}, fmt.Errorf("attachment %q exceeds %d bytes: %w", fh.Filename, h.maxUploadBytes, parley_errors.ErrValidation)
	}
	f, err := fh.Open()
	if err != nil {
		return storage.Upload{}, fmt.Errorf("open attachment %q: %v: %w", fh.Filename, err, parley_errors.ErrValidation)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return storage.Upload{}, fmt.Errorf("read attachment %q: %v: %w", fh.Filename, err, parley_errors.ErrValidation)
	}
	return storage.Upload{
		FileName:     fh.Filename,
		DeclaredType: fh.Header.Get("Content-Type"),
		Data:         data,
	}, nil
}

func (h *MessageHandler) List(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.messages.List(c.Request.Context(), conversationID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"messages": items}))
}

func (h *MessageHandler) Search(c *gin.Context) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	limit, err := parseInt(c.Query("limit"))
	if err != nil {
		invalid(c, "invalid limit", err)
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.messages.Search(c.Request.Context(), conversationID, userID, c.Query("q"), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"messages": items}))
}

func (h *MessageHandler) GetByID(c *gin.Context) {
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	msg, err := h.messages.Get(c.Request.Context(), messageID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "invalid request", err)
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	msg, err := h.messages.Edit(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(msg))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.messages.Delete(c.Request.Context(), messageID, userID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	h.receipt(c, h.messages.MarkRead)
}

func (h *MessageHandler) MarkDelivered(c *gin.Context) {
	h.receipt(c, h.messages.MarkDelivered)
}

func (h *MessageHandler) receipt(c *gin.Context, mark func(ctx context.Context, conversationID, userID uuid.UUID) (int, error)) {
	conversationID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	changed, err := mark(c.Request.Context(), conversationID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ReceiptResponse{Changed: changed}))
}

func (h *MessageHandler) Replies(c *gin.Context) {
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.threads.ListReplies(c.Request.Context(), messageID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"replies": items}))
}

func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req httpdto.ToggleReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, "invalid request", err)
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := h.reactions.Toggle(c.Request.Context(), messageID, userID, req.Emoji)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}

func (h *MessageHandler) Reactions(c *gin.Context) {
	messageID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	groups, err := h.reactions.Grouped(c.Request.Context(), messageID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"reactions": groups}))
}
