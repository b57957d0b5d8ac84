package services

import (
	"context"
	"fmt"

	"parley/internal/domain/message"
	"parley/internal/events"
	"parley/internal/proxy"
	"parley/internal/repository"
	parley_errors "parley/pkg/errors"

	"github.com/google/uuid"
)

// ThreadService maintains reply counts on parent messages and lists replies.
type ThreadService struct {
	store    repository.Store
	notifier Notifier
	clock    Clock
}

func NewThreadService(store repository.Store, notifier Notifier, clock Clock) *ThreadService {
	return &ThreadService{store: store, notifier: orNop(notifier), clock: orNow(clock)}
}

func (s *ThreadService) IncrementThreadCount(ctx context.Context, parentID uuid.UUID) (message.Message, error) {
	return s.adjustAndNotify(ctx, parentID, 1)
}

func (s *ThreadService) DecrementThreadCount(ctx context.Context, parentID uuid.UUID) (message.Message, error) {
	return s.adjustAndNotify(ctx, parentID, -1)
}

func (s *ThreadService) adjustAndNotify(ctx context.Context, parentID uuid.UUID, delta int) (message.Message, error) {
	var parent message.Message
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		parent, err = s.adjust(ctx, tx, parentID, delta)
		return err
	})
	if err != nil {
		return message.Message{}, err
	}
	s.notifier.Wake()
	return parent, nil
}

// adjust changes the parent's thread_count inside tx and records the parent
// UPDATE.
func (s *ThreadService) adjust(ctx context.Context, tx repository.Store, parentID uuid.UUID, delta int) (message.Message, error) {
	parent, err := tx.Messages().AdjustThreadCount(ctx, parentID, delta)
	if err != nil {
		return message.Message{}, fmt.Errorf("adjust thread count: %w", err)
	}
	if err := record(ctx, tx, events.NewMessageEvent(events.KindUpdate, parent, s.clock())); err != nil {
		return message.Message{}, err
	}
	return parent, nil
}

// ListReplies returns the live replies of parentMessageID, oldest first.
func (s *ThreadService) ListReplies(ctx context.Context, parentMessageID, requesterID uuid.UUID) ([]message.Message, error) {
	parent, err := s.store.Messages().GetByID(ctx, parentMessageID)
	if err != nil {
		return nil, err
	}
	if err := proxy.For(s.store).CanViewMessage(ctx, requesterID, parent); err != nil {
		return nil, err
	}
	if parent.IsDeleted() {
		return nil, fmt.Errorf("parent message %s: %w", parentMessageID, parley_errors.ErrNotFound)
	}
	return s.store.Messages().ListReplies(ctx, parentMessageID)
}
