package clientview

import (
	"context"
	"fmt"

	"parley/internal/domain/message"
	"parley/internal/events"
	"parley/internal/services"
	parley_errors "parley/pkg/errors"
	"parley/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MessageSender interface {
	Send(ctx context.Context, in services.SendMessageInput) (message.Message, error)
}

type ReactionToggler interface {
	Toggle(ctx context.Context, messageID, userID uuid.UUID, emoji string) (services.ToggleResult, error)
}

// Session drives a View: it performs sends and reaction toggles against the
// services optimistically and applies the event stream.
type Session struct {
	view      *View
	sender    MessageSender
	reactions ReactionToggler
	log       *logger.Logger
	onChange  func()
}

func NewSession(view *View, sender MessageSender, reactions ReactionToggler, log *logger.Logger) *Session {
	return &Session{
		view:      view,
		sender:    sender,
		reactions: reactions,
		log:       log.Named("clientview"),
		onChange:  func() {},
	}
}

// OnChange registers a callback run after every visible change.
func (s *Session) OnChange(fn func()) {
	if fn != nil {
		s.onChange = fn
	}
}

func (s *Session) View() *View { return s.view }

// Send shows the message immediately and reconciles it with the server's
// answer. On failure the entry stays visible as FAILED and the correlation id
// is returned so the caller can Retry.
func (s *Session) Send(ctx context.Context, content string, parentID uuid.NullUUID) (string, error) {
	correlation := uuid.NewString()
	s.view.AddPending(correlation, content, parentID)
	s.onChange()
	return correlation, s.deliver(ctx, correlation)
}

// Retry resends a failed entry under its original correlation id, so the
// server never stores it twice.
func (s *Session) Retry(ctx context.Context, correlation string) error {
	e, ok := s.view.Pending(correlation)
	if !ok {
		return fmt.Errorf("correlation %s: %w", correlation, parley_errors.ErrNotFound)
	}
	if e.Status == StatusConfirmed {
		return nil
	}
	s.view.AddPending(correlation, e.Message.Text(), e.Message.ParentMessageID)
	s.onChange()
	return s.deliver(ctx, correlation)
}

func (s *Session) deliver(ctx context.Context, correlation string) error {
	e, _ := s.view.Pending(correlation)
	msg, err := s.sender.Send(ctx, services.SendMessageInput{
		ConversationID:  s.view.ConversationID(),
		SenderID:        s.view.ViewerID(),
		Content:         e.Message.Text(),
		ParentMessageID: e.Message.ParentMessageID,
		ClientMessageID: correlation,
	})
	if err != nil {
		s.view.MarkFailed(correlation, err)
		s.onChange()
		s.log.WithContext(ctx).Warn("send failed",
			zap.String("correlation", correlation),
			zap.Bool("retryable", parley_errors.IsRetryable(err)),
			zap.Error(err),
		)
		return err
	}
	s.view.Confirm(msg)
	s.onChange()
	return nil
}

// ToggleReaction flips the reaction locally and reverts it if the server
// rejects the toggle.
func (s *Session) ToggleReaction(ctx context.Context, messageID uuid.UUID, emoji string) error {
	s.view.ToggleLocal(messageID, emoji)
	s.onChange()
	if _, err := s.reactions.Toggle(ctx, messageID, s.view.ViewerID(), emoji); err != nil {
		s.view.ToggleLocal(messageID, emoji)
		s.onChange()
		return err
	}
	return nil
}

// Run applies events from sub until ctx ends or the subscription closes.
func (s *Session) Run(ctx context.Context, sub *events.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if s.view.Apply(ev) {
				s.onChange()
			}
		}
	}
}
