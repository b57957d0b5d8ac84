package clientview

import (
	"context"
	"sync"
	"time"

	"parley/internal/domain/presence"
	"parley/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TypingSetter interface {
	SetTyping(ctx context.Context, userID, conversationID uuid.UUID, isTyping bool) error
}

// TypingNotifier turns keystrokes into typing updates. The indicator is
// refreshed while the user keeps typing and cleared after timeout of quiet.
type TypingNotifier struct {
	setter         TypingSetter
	userID         uuid.UUID
	conversationID uuid.UUID
	timeout        time.Duration
	log            *logger.Logger

	mu       sync.Mutex
	typing   bool
	lastSent time.Time
	timer    *time.Timer
}

func NewTypingNotifier(setter TypingSetter, userID, conversationID uuid.UUID, timeout time.Duration, log *logger.Logger) *TypingNotifier {
	if timeout <= 0 {
		timeout = presence.DefaultTypingTimeout
	}
	return &TypingNotifier{
		setter:         setter,
		userID:         userID,
		conversationID: conversationID,
		timeout:        timeout,
		log:            log.Named("typing-notifier"),
	}
}

// Keystroke marks the user as typing and re-arms the auto-clear timer.
func (n *TypingNotifier) Keystroke(ctx context.Context) {
	n.mu.Lock()
	now := time.Now()
	send := !n.typing || now.Sub(n.lastSent) >= n.timeout/2
	n.typing = true
	if send {
		n.lastSent = now
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.timeout, func() { n.clear(context.Background()) })
	n.mu.Unlock()

	if send {
		n.set(ctx, true)
	}
}

// Stop clears the indicator now, e.g. after the message was sent.
func (n *TypingNotifier) Stop(ctx context.Context) {
	n.mu.Lock()
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.mu.Unlock()
	n.clear(ctx)
}

func (n *TypingNotifier) clear(ctx context.Context) {
	n.mu.Lock()
	was := n.typing
	n.typing = false
	n.mu.Unlock()
	if was {
		n.set(ctx, false)
	}
}

func (n *TypingNotifier) set(ctx context.Context, typing bool) {
	if err := n.setter.SetTyping(ctx, n.userID, n.conversationID, typing); err != nil {
		n.log.Logger.Debug("set typing failed", zap.Bool("typing", typing), zap.Error(err))
	}
}

type PresenceBeater interface {
	Heartbeat(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID) error
}

// Heartbeater reports the user online every interval until its context ends,
// then marks them offline.
type Heartbeater struct {
	beater   PresenceBeater
	userID   uuid.UUID
	interval time.Duration
	log      *logger.Logger
}

func NewHeartbeater(beater PresenceBeater, userID uuid.UUID, interval time.Duration, log *logger.Logger) *Heartbeater {
	if interval <= 0 {
		interval = presence.DefaultHeartbeatInterval
	}
	return &Heartbeater{beater: beater, userID: userID, interval: interval, log: log.Named("heartbeat")}
}

func (h *Heartbeater) Run(ctx context.Context) {
	h.beat(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			offCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := h.beater.SetOffline(offCtx, h.userID); err != nil {
				h.log.Logger.Debug("set offline failed", zap.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
			h.beat(ctx)
		}
	}
}

func (h *Heartbeater) beat(ctx context.Context) {
	if err := h.beater.Heartbeat(ctx, h.userID); err != nil && ctx.Err() == nil {
		h.log.Logger.Debug("heartbeat failed", zap.Error(err))
	}
}
