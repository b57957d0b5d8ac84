package services

import (
	"context"
	"errors"
	"fmt"

	"parley/internal/directory"
	"parley/internal/domain/conversation"
	"parley/internal/domain/user"
	"parley/internal/events"
	"parley/internal/proxy"
	"parley/internal/repository"
	parley_errors "parley/pkg/errors"
	"parley/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ConversationService struct {
	store     repository.Store
	directory *directory.Resolver
	notifier  Notifier
	clock     Clock
	log       *logger.Logger
}

func NewConversationService(store repository.Store, dir *directory.Resolver, notifier Notifier, clock Clock, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:     store,
		directory: dir,
		notifier:  orNop(notifier),
		clock:     orNow(clock),
		log:       log.Named("conversations"),
	}
}

// Create opens a conversation between creatorID and memberIDs. Two distinct
// members make a direct conversation, which is unique per pair.
func (s *ConversationService) Create(ctx context.Context, creatorID uuid.UUID, memberIDs ...uuid.UUID) (conversation.Conversation, error) {
	if creatorID == uuid.Nil {
		return conversation.Conversation{}, fmt.Errorf("%w: creator is required", parley_errors.ErrValidation)
	}
	members := conversation.UniqueMembers(append([]uuid.UUID{creatorID}, memberIDs...)...)
	if len(members) < 2 {
		return conversation.Conversation{}, fmt.Errorf("%w: a conversation needs at least two members", parley_errors.ErrValidation)
	}

	now := s.clock().UTC()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(members) == 2 {
		conv.DirectKey = conversation.DirectKey(members[0], members[1])
	}
	for _, id := range members {
		conv.Participants = append(conv.Participants, conversation.Participant{
			ConversationID: conv.ID,
			UserID:         id,
			JoinedAt:       now,
		})
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Conversations().Create(ctx, &conv); err != nil {
			return err
		}
		return record(ctx, tx, events.NewConversationEvent(events.KindInsert, conv, now))
	})
	if err != nil {
		return conversation.Conversation{}, err
	}
	s.notifier.Wake()

	s.log.WithContext(ctx).Info("conversation created",
		zap.String("conversation_id", conv.ID.String()),
		zap.Int("members", len(members)),
	)
	return conv, nil
}

// StartDirect returns the direct conversation between userID and otherID,
// creating it on first contact.
func (s *ConversationService) StartDirect(ctx context.Context, userID, otherID uuid.UUID) (conversation.Conversation, error) {
	if userID == uuid.Nil || otherID == uuid.Nil || userID == otherID {
		return conversation.Conversation{}, fmt.Errorf("%w: direct conversation needs two distinct users", parley_errors.ErrValidation)
	}
	key := conversation.DirectKey(userID, otherID)

	existing, err := s.store.Conversations().GetByDirectKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, parley_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}

	created, err := s.Create(ctx, userID, otherID)
	if errors.Is(err, parley_errors.ErrConflict) {
		// lost a race with the other participant
		return s.store.Conversations().GetByDirectKey(ctx, key)
	}
	return created, err
}

// List returns the live conversations of userID, most recently active first.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]conversation.Summary, error) {
	return s.store.Conversations().ListForUser(ctx, userID)
}

func (s *ConversationService) Get(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Conversation, error) {
	if err := proxy.For(s.store).CanViewConversation(ctx, userID, conversationID); err != nil {
		return conversation.Conversation{}, err
	}
	return s.store.Conversations().GetByID(ctx, conversationID)
}

// Participants resolves the member profiles of a conversation.
func (s *ConversationService) Participants(ctx context.Context, conversationID, userID uuid.UUID) ([]user.Profile, error) {
	if err := proxy.For(s.store).CanViewConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	ids, err := s.store.Conversations().ListParticipantIDs(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return s.directory.Ordered(ctx, ids)
}

// Delete soft-deletes the conversation. Any participant may delete it.
func (s *ConversationService) Delete(ctx context.Context, conversationID, userID uuid.UUID) error {
	now := s.clock().UTC()
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := proxy.For(tx).CanViewConversation(ctx, userID, conversationID); err != nil {
			return err
		}
		if err := tx.Conversations().SoftDelete(ctx, conversationID, now); err != nil {
			return err
		}
		conv, err := tx.Conversations().GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		return record(ctx, tx, events.NewConversationEvent(events.KindDelete, conv, now))
	})
	if err != nil {
		return err
	}
	s.notifier.Wake()
	return nil
}
