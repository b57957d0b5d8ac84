package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"parley/internal/events"
	"parley/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Subscriber opens scoped event subscriptions. Implemented by events.Bus.
type Subscriber interface {
	Subscribe(scope events.Scope) (*events.Subscription, error)
}

// Client is one websocket connection. A client whose send buffer fills up is
// disconnected rather than allowed to miss events silently.
type Client struct {
	ID     string
	UserID uuid.UUID

	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	subs map[string]*events.Subscription
	wg   sync.WaitGroup
}

func NewClient(ctx context.Context, conn *websocket.Conn, userID uuid.UUID, limiter *rate.Limiter, log *logger.Logger) *Client {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	return &Client{
		ID:      id,
		UserID:  userID,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		limiter: limiter,
		log:     log.With(zap.String("client_id", id), zap.String("user_id", userID.String())),
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[string]*events.Subscription),
	}
}

func (c *Client) Context() context.Context {
	return c.ctx
}

// Close stops the write loop and every subscription. Safe to call twice.
func (c *Client) Close() {
	c.cancel()

	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]*events.Subscription)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Release()
	}
	c.wg.Wait()
}

func (c *Client) SendFrame(frame OutboundFrame) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		c.log.Errorf("marshal %s frame: %v", frame.Type, err)
		return false
	}
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		c.log.Warnf("send buffer full, disconnecting")
		c.cancel()
		return false
	}
}

// Subscribed reports whether the client already holds scope.
func (c *Client) Subscribed(scope events.Scope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[scope.String()]
	return ok
}

// Attach starts forwarding sub's events to the connection. A second
// subscription to the same scope replaces nothing and is released.
func (c *Client) Attach(sub *events.Subscription) {
	key := sub.Scope().String()
	c.mu.Lock()
	if _, exists := c.subs[key]; exists || c.ctx.Err() != nil {
		c.mu.Unlock()
		sub.Release()
		return
	}
	c.subs[key] = sub
	c.wg.Add(1)
	c.mu.Unlock()

	go c.forward(key, sub)
}

func (c *Client) Detach(scope events.Scope) bool {
	c.mu.Lock()
	sub, ok := c.subs[scope.String()]
	delete(c.subs, scope.String())
	c.mu.Unlock()
	if ok {
		sub.Release()
	}
	return ok
}

func (c *Client) forward(key string, sub *events.Subscription) {
	defer c.wg.Done()
	for ev := range sub.Events() {
		env, err := events.NewEnvelope(ev)
		if err != nil {
			c.log.Errorf("encode %s event %s: %v", ev.Entity, ev.ID, err)
			continue
		}
		if !c.SendFrame(OutboundFrame{Type: FrameEvent, Scope: key, Event: &env}) {
			return
		}
	}
}

// readPump feeds frames to handle until the connection fails or the client
// is closed.
func (c *Client) readPump(handle func(InboundFrame)) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warnf("websocket unexpected close: %v", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.SendFrame(errorFrame("", malformed(err)))
			continue
		}
		if c.limiter != nil && !c.limiter.Allow() {
			c.SendFrame(errorFrame(frame.ID, rateLimited()))
			continue
		}
		handle(frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.cancel()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}
