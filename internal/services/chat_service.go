package services

import (
	"context"

	"parley/internal/domain/message"

	"github.com/google/uuid"
)

// ChatService composes conversation and message operations that span both.
type ChatService struct {
	conversations *ConversationService
	messages      *MessageService
}

func NewChatService(conversations *ConversationService, messages *MessageService) *ChatService {
	return &ChatService{conversations: conversations, messages: messages}
}

// SendDirect sends to recipientID, opening the direct conversation on first
// exchange. in.ConversationID is ignored.
func (s *ChatService) SendDirect(ctx context.Context, recipientID uuid.UUID, in SendMessageInput) (message.Message, error) {
	if _, err := s.messages.validateSend(SendMessageInput{
		ConversationID: uuid.New(),
		SenderID:       in.SenderID,
		Content:        in.Content,
		Attachments:    in.Attachments,
	}); err != nil {
		return message.Message{}, err
	}
	conv, err := s.conversations.StartDirect(ctx, in.SenderID, recipientID)
	if err != nil {
		return message.Message{}, err
	}
	in.ConversationID = conv.ID
	return s.messages.Send(ctx, in)
}
