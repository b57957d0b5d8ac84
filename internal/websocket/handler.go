package websocket

import (
	"fmt"
	"net/http"

	"parley/internal/auth"
	"parley/internal/commands"
	"parley/internal/transport/httpdto"
	parley_errors "parley/pkg/errors"
	"parley/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type Config struct {
	FrameRPS   float64
	FrameBurst int
}

type Handler struct {
	hub        *Hub
	events     Subscriber
	commands   *commands.Bus
	authorizer *ScopeAuthorizer
	cfg        Config
	log        *logger.Logger
	upgrader   websocket.Upgrader
}

func NewHandler(hub *Hub, events Subscriber, bus *commands.Bus, authorizer *ScopeAuthorizer, cfg Config, log *logger.Logger) *Handler {
	return &Handler{
		hub:        hub,
		events:     events,
		commands:   bus,
		authorizer: authorizer,
		cfg:        cfg,
		log:        log.Named("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Connect upgrades an authenticated request and serves frames until the
// connection closes. Mount behind middleware.AuthMiddleware.
func (h *Handler) Connect(c *gin.Context) {
	userID, ok := auth.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Sugar().Debugf("upgrade failed: %v", err)
		return
	}

	var limiter *rate.Limiter
	if h.cfg.FrameRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.cfg.FrameRPS), h.cfg.FrameBurst)
	}
	client := NewClient(c.Request.Context(), conn, userID, limiter, h.log)
	h.hub.Register(client)

	go client.writePump()
	client.readPump(func(f InboundFrame) { h.handleFrame(client, f) })

	client.Close()
	h.hub.Unregister(c.Request.Context(), client)
}

func (h *Handler) handleFrame(client *Client, f InboundFrame) {
	switch f.Type {
	case FramePing:
		client.SendFrame(OutboundFrame{ID: f.ID, Type: FramePong})
	case FrameSubscribe:
		h.subscribe(client, f)
	case FrameUnsubscribe:
		scope, err := f.scope()
		if err != nil {
			client.SendFrame(errorFrame(f.ID, err))
			return
		}
		client.Detach(scope)
		client.SendFrame(ackFrame(f.ID, scope.String(), nil))
	default:
		h.execute(client, f)
	}
}

func (h *Handler) subscribe(client *Client, f InboundFrame) {
	scope, err := f.scope()
	if err != nil {
		client.SendFrame(errorFrame(f.ID, err))
		return
	}
	if err := h.authorizer.Authorize(client.Context(), client.UserID, scope); err != nil {
		client.SendFrame(errorFrame(f.ID, err))
		return
	}
	if !client.Subscribed(scope) {
		sub, err := h.events.Subscribe(scope)
		if err != nil {
			client.SendFrame(errorFrame(f.ID, err))
			return
		}
		client.Attach(sub)
	}
	client.SendFrame(ackFrame(f.ID, scope.String(), nil))
}

func (h *Handler) execute(client *Client, f InboundFrame) {
	cmd, err := f.command(client.UserID)
	if err != nil {
		client.SendFrame(errorFrame(f.ID, err))
		return
	}
	res, err := h.commands.Execute(client.Context(), cmd)
	if err != nil {
		client.SendFrame(errorFrame(f.ID, err))
		return
	}
	client.SendFrame(ackFrame(f.ID, "", res.Payload))
}

func malformed(err error) error {
	return fmt.Errorf("%w: malformed frame: %v", parley_errors.ErrValidation, err)
}

func rateLimited() error {
	return fmt.Errorf("%w: too many frames", parley_errors.ErrRateLimited)
}
