package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"parley/internal/commands"
	"parley/internal/domain/message"
	"parley/internal/events"
	"parley/internal/proxy"
	"parley/internal/redis"
	"parley/internal/repository"
	"parley/internal/storage"
	parley_errors "parley/pkg/errors"
	"parley/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxAttachments = 10
	defaultSearchLimit    = 50
	maxSearchLimit        = 200
)

// SendLimiter throttles sends per user.
type SendLimiter interface {
	AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}

// SendRecorder counts committed sends. Implemented by the metrics package.
type SendRecorder interface {
	MessageSent(attachments int)
}

type SendMessageInput struct {
	ConversationID  uuid.UUID
	SenderID        uuid.UUID
	Content         string
	Attachments     []storage.Upload
	ParentMessageID uuid.NullUUID
	ClientMessageID string
}

type MessageLimits struct {
	MaxAttachments int
	MaxUploadBytes int64
}

type MessageService struct {
	store    repository.Store
	uploads  storage.AttachmentStore
	threads  *ThreadService
	notifier Notifier
	clock    Clock
	log      *logger.Logger
	limits   MessageLimits
	limiter  SendLimiter
	recorder SendRecorder
}

func NewMessageService(store repository.Store, uploads storage.AttachmentStore, threads *ThreadService, notifier Notifier, clock Clock, limits MessageLimits, log *logger.Logger) *MessageService {
	if limits.MaxAttachments <= 0 {
		limits.MaxAttachments = defaultMaxAttachments
	}
	return &MessageService{
		store:    store,
		uploads:  uploads,
		threads:  threads,
		notifier: orNop(notifier),
		clock:    orNow(clock),
		log:      log.Named("messages"),
		limits:   limits,
	}
}

func (s *MessageService) SetLimiter(l SendLimiter) {
	s.limiter = l
}

func (s *MessageService) SetRecorder(r SendRecorder) {
	s.recorder = r
}

func (s *MessageService) RegisterHandlers(bus *commands.Bus) {
	bus.Register(commands.TypeSendMessage, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c := cmd.(commands.SendMessageCommand)
		msg, err := s.Send(ctx, SendMessageInput{
			ConversationID:  c.ConversationID,
			SenderID:        c.SenderID,
			Content:         c.Content,
			ParentMessageID: c.ParentMessageID,
			ClientMessageID: c.ClientMessageID,
		})
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: msg.ID.String(), Payload: msg}, nil
	}))
	bus.Register(commands.TypeEditMessage, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c := cmd.(commands.EditMessageCommand)
		msg, err := s.Edit(ctx, c.MessageID, c.EditorID, c.Content)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: msg.ID.String(), Payload: msg}, nil
	}))
	bus.Register(commands.TypeDeleteMessage, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c := cmd.(commands.DeleteMessageCommand)
		if err := s.Delete(ctx, c.MessageID, c.RequesterID); err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.MessageID.String()}, nil
	}))
	receipt := commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c := cmd.(commands.ReceiptCommand)
		mark := s.MarkRead
		if c.Type == commands.TypeMarkDelivered {
			mark = s.MarkDelivered
		}
		n, err := mark(ctx, c.ConversationID, c.UserID)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.ConversationID.String(), Payload: n}, nil
	})
	bus.Register(commands.TypeMarkRead, receipt)
	bus.Register(commands.TypeMarkDelivered, receipt)
}

func (s *MessageService) validateSend(in SendMessageInput) (*string, error) {
	if in.ConversationID == uuid.Nil || in.SenderID == uuid.Nil {
		return nil, fmt.Errorf("%w: conversation and sender are required", parley_errors.ErrValidation)
	}
	content := message.NormalizeContent(in.Content)
	if content == nil && len(in.Attachments) == 0 {
		return nil, fmt.Errorf("%w: message needs content or attachments", parley_errors.ErrValidation)
	}
	if len(in.Attachments) > s.limits.MaxAttachments {
		return nil, fmt.Errorf("%w: at most %d attachments", parley_errors.ErrValidation, s.limits.MaxAttachments)
	}
	for _, u := range in.Attachments {
		if err := u.Validate(s.limits.MaxUploadBytes); err != nil {
			return nil, err
		}
	}
	return content, nil
}

// Send persists a message with its attachments. A retry carrying a
// ClientMessageID that is already stored returns the stored message and
// publishes nothing new.
func (s *MessageService) Send(ctx context.Context, in SendMessageInput) (message.Message, error) {
	content, err := s.validateSend(in)
	if err != nil {
		return message.Message{}, err
	}
	if err := proxy.For(s.store).CanSendMessage(ctx, in.SenderID, in.ConversationID); err != nil {
		return message.Message{}, err
	}

	if in.ClientMessageID != "" {
		existing, err := s.existingSend(ctx, in)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, parley_errors.ErrNotFound) {
			return message.Message{}, err
		}
	}

	if err := s.checkRate(ctx, in.SenderID); err != nil {
		return message.Message{}, err
	}
	if in.ParentMessageID.Valid {
		if err := s.checkParent(ctx, s.store, in); err != nil {
			return message.Message{}, err
		}
	}

	now := s.clock().UTC()
	msg := message.Message{
		ID:              uuid.New(),
		ConversationID:  in.ConversationID,
		SenderID:        in.SenderID,
		ClientMessageID: in.ClientMessageID,
		Content:         content,
		CreatedAt:       now,
		UpdatedAt:       now,
		HasAttachment:   len(in.Attachments) > 0,
		ParentMessageID: in.ParentMessageID,
	}

	// Blobs go up before the transaction so a failed upload leaves no rows.
	for _, u := range in.Attachments {
		obj, err := s.uploads.Store(ctx, u)
		if err != nil {
			s.log.WithContext(ctx).Warn("attachment upload failed",
				zap.String("conversation_id", in.ConversationID.String()),
				zap.String("file_name", u.FileName),
				zap.Error(err),
			)
			return message.Message{}, err
		}
		a := obj.ToAttachment(u.FileName)
		a.MessageID = msg.ID
		a.CreatedAt = now
		msg.Attachments = append(msg.Attachments, a)
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := proxy.For(tx).CanSendMessage(ctx, in.SenderID, in.ConversationID); err != nil {
			return err
		}
		if msg.IsReply() {
			if err := s.checkParent(ctx, tx, in); err != nil {
				return err
			}
		}
		if err := tx.Messages().Create(ctx, &msg); err != nil {
			return err
		}

		evs := []events.ChangeEvent{events.NewMessageEvent(events.KindInsert, msg, now)}
		for _, a := range msg.Attachments {
			evs = append(evs, events.NewAttachmentEvent(events.KindInsert, a, msg.ConversationID, now))
		}
		if err := record(ctx, tx, evs...); err != nil {
			return err
		}

		if msg.IsReply() {
			if _, err := s.threads.adjust(ctx, tx, msg.ParentMessageID.UUID, 1); err != nil {
				return err
			}
		}

		if err := tx.Conversations().Touch(ctx, msg.ConversationID, now); err != nil {
			return err
		}
		conv, err := tx.Conversations().GetByID(ctx, msg.ConversationID)
		if err != nil {
			return err
		}
		return record(ctx, tx, events.NewConversationEvent(events.KindUpdate, conv, now))
	})
	if errors.Is(err, parley_errors.ErrConflict) && in.ClientMessageID != "" {
		// a concurrent retry with the same correlation committed first
		return s.existingSend(ctx, in)
	}
	if err != nil {
		return message.Message{}, err
	}

	s.notifier.Wake()
	if s.recorder != nil {
		s.recorder.MessageSent(len(msg.Attachments))
	}
	s.log.WithContext(ctx).Debug("message sent",
		zap.String("message_id", msg.ID.String()),
		zap.String("conversation_id", msg.ConversationID.String()),
	)
	return msg, nil
}

func (s *MessageService) existingSend(ctx context.Context, in SendMessageInput) (message.Message, error) {
	existing, err := s.store.Messages().GetByClientMessageID(ctx, in.ConversationID, in.ClientMessageID)
	if err != nil {
		return message.Message{}, err
	}
	if existing.SenderID != in.SenderID {
		return message.Message{}, fmt.Errorf("client message id reused: %w", parley_errors.ErrConflict)
	}
	return existing, nil
}

func (s *MessageService) checkParent(ctx context.Context, store repository.Store, in SendMessageInput) error {
	parent, err := store.Messages().GetByID(ctx, in.ParentMessageID.UUID)
	if errors.Is(err, parley_errors.ErrNotFound) {
		return fmt.Errorf("%w: parent message %s does not exist", parley_errors.ErrValidation, in.ParentMessageID.UUID)
	}
	if err != nil {
		return err
	}
	if !parent.CanParent(in.ConversationID) {
		return fmt.Errorf("%w: parent must be a live top-level message of the same conversation", parley_errors.ErrValidation)
	}
	return nil
}

func (s *MessageService) checkRate(ctx context.Context, senderID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	res, err := s.limiter.AllowMessage(ctx, senderID.String())
	if err != nil {
		s.log.WithContext(ctx).Warn("rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !res.Allowed {
		return fmt.Errorf("retry in %s: %w", res.ResetIn, parley_errors.ErrRateLimited)
	}
	return nil
}

// Edit replaces the content of a text message. Only the sender may edit and
// messages with attachments are immutable.
func (s *MessageService) Edit(ctx context.Context, messageID, editorID uuid.UUID, newContent string) (message.Message, error) {
	var updated message.Message
	now := s.clock().UTC()
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		current, err := tx.Messages().GetByID(ctx, messageID)
		if err != nil {
			return err
		}
		if err := proxy.For(tx).CanViewMessage(ctx, editorID, current); err != nil {
			return err
		}
		if err := current.CheckEditable(editorID); err != nil {
			return fmt.Errorf("edit message %s: %w", messageID, err)
		}
		content := message.NormalizeContent(newContent)
		if content == nil {
			return fmt.Errorf("%w: edited content is empty", parley_errors.ErrValidation)
		}
		updated, err = tx.Messages().UpdateContent(ctx, messageID, *content, now)
		if err != nil {
			return err
		}
		return record(ctx, tx, events.NewMessageEvent(events.KindUpdate, updated, now))
	})
	if err != nil {
		return message.Message{}, err
	}
	s.notifier.Wake()
	return updated, nil
}

// Delete soft-deletes a message and its attachments. A deleted reply gives
// back its slot in the parent's thread count.
func (s *MessageService) Delete(ctx context.Context, messageID, requesterID uuid.UUID) error {
	now := s.clock().UTC()
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		current, err := tx.Messages().GetByID(ctx, messageID)
		if err != nil {
			return err
		}
		if err := proxy.For(tx).CanViewMessage(ctx, requesterID, current); err != nil {
			return err
		}
		if err := current.CheckDeletable(requesterID); err != nil {
			return fmt.Errorf("delete message %s: %w", messageID, err)
		}
		deleted, err := tx.Messages().SoftDelete(ctx, messageID, now)
		if err != nil {
			return err
		}

		evs := []events.ChangeEvent{events.NewMessageEvent(events.KindDelete, deleted, now)}
		for _, a := range current.Attachments {
			a.DeletedAt = &now
			evs = append(evs, events.NewAttachmentEvent(events.KindDelete, a, current.ConversationID, now))
		}
		if err := record(ctx, tx, evs...); err != nil {
			return err
		}

		if current.IsReply() {
			if _, err := s.threads.adjust(ctx, tx, current.ParentMessageID.UUID, -1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.notifier.Wake()
	return nil
}

// MarkRead marks every unread message not sent by readerID as read and
// delivered. It returns how many rows changed.
func (s *MessageService) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) (int, error) {
	return s.mark(ctx, conversationID, readerID, repository.MessageRepository.MarkRead)
}

func (s *MessageService) MarkDelivered(ctx context.Context, conversationID, recipientID uuid.UUID) (int, error) {
	return s.mark(ctx, conversationID, recipientID, repository.MessageRepository.MarkDelivered)
}

type markFunc func(repository.MessageRepository, context.Context, uuid.UUID, uuid.UUID, time.Time) ([]message.Message, error)

func (s *MessageService) mark(ctx context.Context, conversationID, userID uuid.UUID, apply markFunc) (int, error) {
	now := s.clock().UTC()
	changed := 0
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := proxy.For(tx).CanViewConversation(ctx, userID, conversationID); err != nil {
			return err
		}
		rows, err := apply(tx.Messages(), ctx, conversationID, userID, now)
		if err != nil {
			return err
		}
		changed = len(rows)
		evs := make([]events.ChangeEvent, 0, len(rows))
		for _, m := range rows {
			evs = append(evs, events.NewMessageEvent(events.KindUpdate, m, now))
		}
		return record(ctx, tx, evs...)
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.notifier.Wake()
	}
	return changed, nil
}

// List returns the live top-level messages of a conversation, oldest first,
// with attachments loaded.
func (s *MessageService) List(ctx context.Context, conversationID, requesterID uuid.UUID) ([]message.Message, error) {
	if err := proxy.For(s.store).CanViewConversation(ctx, requesterID, conversationID); err != nil {
		return nil, err
	}
	return s.store.Messages().ListTopLevel(ctx, conversationID)
}

func (s *MessageService) Get(ctx context.Context, messageID, requesterID uuid.UUID) (message.Message, error) {
	m, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if err := proxy.For(s.store).CanViewMessage(ctx, requesterID, m); err != nil {
		return message.Message{}, err
	}
	if m.IsDeleted() {
		return message.Message{}, fmt.Errorf("message %s: %w", messageID, parley_errors.ErrNotFound)
	}
	return m, nil
}

func (s *MessageService) Search(ctx context.Context, conversationID, requesterID uuid.UUID, query string, limit int) ([]message.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is empty", parley_errors.ErrValidation)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	if err := proxy.For(s.store).CanViewConversation(ctx, requesterID, conversationID); err != nil {
		return nil, err
	}
	return s.store.Messages().Search(ctx, conversationID, query, limit)
}
