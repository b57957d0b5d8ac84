package services

import (
	"context"
	"fmt"

	"parley/internal/commands"
	"parley/internal/domain/message"
	"parley/internal/events"
	"parley/internal/proxy"
	"parley/internal/repository"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
)

type ToggleResult struct {
	Added    bool             `json:"added"`
	Reaction message.Reaction `json:"reaction"`
}

type ReactionService struct {
	store    repository.Store
	notifier Notifier
	clock    Clock
}

func NewReactionService(store repository.Store, notifier Notifier, clock Clock) *ReactionService {
	return &ReactionService{store: store, notifier: orNop(notifier), clock: orNow(clock)}
}

func (s *ReactionService) RegisterHandlers(bus *commands.Bus) {
	bus.Register(commands.TypeToggleReaction, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c := cmd.(commands.ToggleReactionCommand)
		res, err := s.Toggle(ctx, c.MessageID, c.UserID, c.Emoji)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.MessageID.String(), Payload: res}, nil
	}))
}

// Toggle adds the reaction, or removes it when userID already reacted with
// emoji on messageID.
func (s *ReactionService) Toggle(ctx context.Context, messageID, userID uuid.UUID, emoji string) (ToggleResult, error) {
	if !message.ValidEmoji(emoji) {
		return ToggleResult{}, fmt.Errorf("%w: %q is not a single emoji", parley_errors.ErrValidation, emoji)
	}

	now := s.clock().UTC()
	var res ToggleResult
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		m, err := tx.Messages().GetByID(ctx, messageID)
		if err != nil {
			return err
		}
		if err := proxy.For(tx).CanViewMessage(ctx, userID, m); err != nil {
			return err
		}
		if m.IsDeleted() {
			return fmt.Errorf("react to message %s: %w", messageID, parley_errors.ErrNotFound)
		}

		reaction, added, err := tx.Reactions().Toggle(ctx, message.Reaction{
			ID:        uuid.New(),
			MessageID: messageID,
			UserID:    userID,
			Emoji:     emoji,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		res = ToggleResult{Added: added, Reaction: reaction}

		kind := events.KindDelete
		if added {
			kind = events.KindInsert
		}
		return record(ctx, tx, events.NewReactionEvent(kind, reaction, m.ConversationID, now))
	})
	if err != nil {
		return ToggleResult{}, err
	}
	s.notifier.Wake()
	return res, nil
}

// Grouped returns the reactions on messageID grouped by emoji, in order of
// each emoji's first use.
func (s *ReactionService) Grouped(ctx context.Context, messageID, requesterID uuid.UUID) ([]message.ReactionGroup, error) {
	m, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := proxy.For(s.store).CanViewMessage(ctx, requesterID, m); err != nil {
		return nil, err
	}
	reactions, err := s.store.Reactions().ListByMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return message.GroupReactions(reactions), nil
}
