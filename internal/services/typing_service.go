package services

import (
	"context"
	"sort"
	"time"

	"parley/internal/commands"
	"parley/internal/directory"
	"parley/internal/domain/presence"
	"parley/internal/domain/user"
	"parley/internal/events"
	"parley/internal/proxy"
	"parley/internal/repository"
	"parley/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TypingService records typing indicators and publishes them straight to the
// event bus. Indicators are ephemeral and skip the outbox.
type TypingService struct {
	store     repository.Store
	typing    repository.TypingRepository
	publisher events.Publisher
	directory *directory.Resolver
	clock     Clock
	timeout   time.Duration
	log       *logger.Logger
}

func NewTypingService(store repository.Store, typing repository.TypingRepository, publisher events.Publisher, dir *directory.Resolver, clock Clock, timeout time.Duration, log *logger.Logger) *TypingService {
	if timeout <= 0 {
		timeout = presence.DefaultTypingTimeout
	}
	return &TypingService{
		store:     store,
		typing:    typing,
		publisher: publisher,
		directory: dir,
		clock:     orNow(clock),
		timeout:   timeout,
		log:       log.Named("typing"),
	}
}

func (s *TypingService) RegisterHandlers(bus *commands.Bus) {
	bus.Register(commands.TypeSetTyping, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c := cmd.(commands.SetTypingCommand)
		if err := s.SetTyping(ctx, c.UserID, c.ConversationID, c.IsTyping); err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.ConversationID.String()}, nil
	}))
}

func (s *TypingService) SetTyping(ctx context.Context, userID, conversationID uuid.UUID, isTyping bool) error {
	if err := proxy.For(s.store).EnsureParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	now := s.clock().UTC()
	ind := presence.TypingIndicator{
		UserID:         userID,
		ConversationID: conversationID,
		IsTyping:       isTyping,
		LastUpdated:    now,
	}
	if err := s.typing.Upsert(ctx, ind); err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, events.NewTypingEvent(ind, now)); err != nil {
		s.log.WithContext(ctx).Warn("publish typing indicator failed",
			zap.String("conversation_id", conversationID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// ListTypingUsers returns who is typing in the conversation right now,
// excluding the caller, in the order they started.
func (s *TypingService) ListTypingUsers(ctx context.Context, conversationID, excludingUserID uuid.UUID) ([]user.Profile, error) {
	if err := proxy.For(s.store).EnsureParticipant(ctx, conversationID, excludingUserID); err != nil {
		return nil, err
	}
	indicators, err := s.typing.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	active := make([]presence.TypingIndicator, 0, len(indicators))
	for _, ind := range indicators {
		if ind.UserID != excludingUserID && ind.Active(now, s.timeout) {
			active = append(active, ind)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].LastUpdated.Before(active[j].LastUpdated)
	})

	ids := make([]uuid.UUID, len(active))
	for i, ind := range active {
		ids[i] = ind.UserID
	}
	return s.directory.Ordered(ctx, ids)
}
