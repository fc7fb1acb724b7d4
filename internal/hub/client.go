package hub

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Outreach/internal/event"
)

var (
	// tuning parameters
	writeWait         = 10 * time.Second    // time allowed to write a message to the peer
	pongWait          = 20 * time.Second    // time allowed to read the next pong message from the peer
	pingInterval      = (pongWait * 9) / 10 // send pings to peer with this period
	maxMessageSize    = 4 * 1024            // the feed is one-way; inbound frames are tiny
	sendBufSize       = 16                  // per-connection outbound buffer size
	kickOnFull        = true                // when true, disconnect client when egress is full
	registerTimeout   = 5 * time.Second     // timeout for client registration
	unregisterTimeout = 5 * time.Second     // timeout for client unregistration
)

// Client is one UI connection on the push feed.
type Client struct {
	ID      string
	conn    *websocket.Conn
	manager *Hub
	egress  chan event.WsEvent
	logger  *zap.Logger

	ctx            context.Context
	cancel         context.CancelFunc
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
	closed         bool
	closedMu       sync.RWMutex // guards closed and the egress close
}

func newClient(conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(h.ctx)
	id := uuid.New().String()
	return &Client{
		ID:         id,
		conn:       conn,
		manager:    h,
		egress:     make(chan event.WsEvent, h.opts.SendBuffer),
		logger:     h.logger.With(zap.String("client_id", id)),
		ctx:        ctx,
		cancel:     cancel,
		connClosed: make(chan struct{}),
	}
}

// ReadMessages keeps the read side alive for pongs and close frames. Anything the UI
// sends is discarded.
func (c *Client) ReadMessages() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.ctx.Done():
		case <-time.After(unregisterTimeout):
			c.logger.Warn("failed to unregister ui client: timeout")
		}
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
			) {
				c.logger.Debug("ui client disconnected")
				return
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				c.logger.Info("ui client timed out - closing connection")
				return
			}

			c.logger.Debug("ui client read ended", zap.Error(err))
			return
		}
	}
}

func (c *Client) WriteMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case ev, ok := <-c.egress:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Debug("ui write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("ui ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// SafeSend enqueues ev without blocking. It returns false when the client is closed or
// its buffer is full.
func (c *Client) SafeSend(ev event.WsEvent) bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	if c.closed {
		return false
	}

	select {
	case c.egress <- ev:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		// Mark as closed BEFORE closing the channel
		c.closedMu.Lock()
		c.closed = true
		close(c.egress)
		c.closedMu.Unlock()

		c.cancel()

		// Wait for WriteMessages to close conn, or force close after timeout
		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
				c.logger.Warn("safety timeout: force closed ui connection")
			}
		}()
	})
}

// IsClosed returns true if the client has been closed
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}
