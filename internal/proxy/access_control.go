package proxy

import (
	"context"
	"errors"
	"fmt"

	"parley/internal/domain/message"
	"parley/internal/repository"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
)

// AccessControl performs the participant checks every read and mutation
// goes through. Denials wrap parley_errors.ErrUnauthorized.
type AccessControl struct {
	conversationRepo repository.ConversationRepository
}

func NewAccessControl(conversationRepo repository.ConversationRepository) *AccessControl {
	return &AccessControl{conversationRepo: conversationRepo}
}

// For returns an AccessControl reading through store, so checks made inside a
// transaction see its writes.
func For(store repository.Store) *AccessControl {
	return NewAccessControl(store.Conversations())
}

func (a *AccessControl) CanSendMessage(ctx context.Context, userID, conversationID uuid.UUID) error {
	return a.EnsureParticipant(ctx, conversationID, userID)
}

func (a *AccessControl) CanViewConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	return a.EnsureParticipant(ctx, conversationID, userID)
}

// CanViewMessage checks the requester belongs to the message's conversation.
func (a *AccessControl) CanViewMessage(ctx context.Context, userID uuid.UUID, m message.Message) error {
	return a.EnsureParticipant(ctx, m.ConversationID, userID)
}

// EnsureParticipant fails with ErrUnauthorized unless userID belongs to a live
// conversation.
func (a *AccessControl) EnsureParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	if a.conversationRepo == nil {
		return parley_errors.ErrUnauthorized
	}
	conv, err := a.conversationRepo.GetByID(ctx, conversationID)
	if errors.Is(err, parley_errors.ErrNotFound) {
		return fmt.Errorf("conversation %s: %w", conversationID, parley_errors.ErrUnauthorized)
	}
	if err != nil {
		return err
	}
	if conv.IsDeleted() {
		return fmt.Errorf("conversation %s: %w", conversationID, parley_errors.ErrUnauthorized)
	}
	ok, err := a.conversationRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %s in conversation %s: %w", userID, conversationID, parley_errors.ErrUnauthorized)
	}
	return nil
}
