package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"parley/internal/commands"
	"parley/internal/directory"
	"parley/internal/domain/presence"
	"parley/internal/domain/user"
	"parley/internal/events"
	"parley/internal/repository"
	parley_errors "parley/pkg/errors"
	"parley/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PresenceService struct {
	presence  repository.PresenceRepository
	publisher events.Publisher
	directory *directory.Resolver
	clock     Clock
	window    time.Duration
	log       *logger.Logger
}

func NewPresenceService(repo repository.PresenceRepository, publisher events.Publisher, dir *directory.Resolver, clock Clock, window time.Duration, log *logger.Logger) *PresenceService {
	if window <= 0 {
		window = presence.DefaultPresenceWindow
	}
	return &PresenceService{
		presence:  repo,
		publisher: publisher,
		directory: dir,
		clock:     orNow(clock),
		window:    window,
		log:       log.Named("presence"),
	}
}

func (s *PresenceService) RegisterHandlers(bus *commands.Bus) {
	bus.Register(commands.TypeHeartbeat, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		c := cmd.(commands.HeartbeatCommand)
		if err := s.Heartbeat(ctx, c.UserID); err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: c.UserID.String()}, nil
	}))
}

func (s *PresenceService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	return s.set(ctx, userID, true)
}

func (s *PresenceService) SetOffline(ctx context.Context, userID uuid.UUID) error {
	return s.set(ctx, userID, false)
}

func (s *PresenceService) set(ctx context.Context, userID uuid.UUID, online bool) error {
	now := s.clock().UTC()
	status := presence.OnlineStatus{UserID: userID, LastSeen: now, IsOnline: online}
	if err := s.presence.Upsert(ctx, status); err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, events.NewPresenceEvent(status, now)); err != nil {
		s.log.WithContext(ctx).Warn("publish presence failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
	return nil
}

func (s *PresenceService) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	status, err := s.presence.Get(ctx, userID)
	if errors.Is(err, parley_errors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status.Online(s.clock(), s.window), nil
}

// ListOnlineUsers returns users whose last heartbeat falls inside the
// presence window, most recently seen first.
func (s *PresenceService) ListOnlineUsers(ctx context.Context) ([]user.Profile, error) {
	now := s.clock()
	statuses, err := s.presence.ListSeenSince(ctx, now.Add(-s.window))
	if err != nil {
		return nil, err
	}
	online := make([]presence.OnlineStatus, 0, len(statuses))
	for _, st := range statuses {
		if st.Online(now, s.window) {
			online = append(online, st)
		}
	}
	sort.SliceStable(online, func(i, j int) bool {
		return online[i].LastSeen.After(online[j].LastSeen)
	})

	ids := make([]uuid.UUID, len(online))
	for i, st := range online {
		ids[i] = st.UserID
	}
	return s.directory.Ordered(ctx, ids)
}
