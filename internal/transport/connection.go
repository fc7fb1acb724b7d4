package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Outreach/internal/event"
	"Outreach/internal/retry"
)

var (
	ErrNoCredential = errors.New("no credential: channel not opened")
	ErrNotConnected = errors.New("channel not connected")
	ErrClosed       = errors.New("connection closed")
	ErrEgressFull   = errors.New("egress buffer full")
)

// Handler receives everything the channel produces. Calls come from the connection's
// own goroutines.
type Handler interface {
	HandleEvent(in event.Incoming)
	HandleState(connected bool)
}

// Options tunes the channel.
type Options struct {
	URL              string
	TokenQueryParam  string // also pass the token in the query string when set
	HandshakeTimeout time.Duration
	WriteWait        time.Duration // time allowed to write a frame
	PongWait         time.Duration // time allowed to read the next pong
	PingInterval     time.Duration // must be less than PongWait
	MaxMessageSize   int64
	SendBufSize      int
	SendTimeout      time.Duration // timeout for enqueuing outbound frames
	Reconnect        bool
	ReconnectBase    time.Duration
	ReconnectMax     time.Duration
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 20 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = (o.PongWait * 9) / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 * 1024
	}
	if o.SendBufSize <= 0 {
		o.SendBufSize = 256
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 2 * time.Second
	}
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = 100 * time.Millisecond
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = 30 * time.Second
	}
	return o
}

// Dialer opens authenticated channels.
type Dialer struct {
	opts    Options
	logger  *zap.Logger
	ws      *websocket.Dialer
	backoff retry.Backoff
}

func NewDialer(opts Options, logger *zap.Logger) *Dialer {
	opts = opts.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dialer{
		opts:   opts,
		logger: logger,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		backoff: retry.Backoff{Base: opts.ReconnectBase, Max: opts.ReconnectMax},
	}
}

// Dial starts a channel authenticated with token. The first connect attempt and any
// reconnects happen in the background; h sees every state change. An empty token opens
// nothing.
func (d *Dialer) Dial(ctx context.Context, token string, h Handler) (*Connection, error) {
	if token == "" {
		return nil, ErrNoCredential
	}
	if _, err := url.Parse(d.opts.URL); err != nil || d.opts.URL == "" {
		return nil, fmt.Errorf("invalid socket url %q: %w", d.opts.URL, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Connection{
		ID:      uuid.New().String(),
		dialer:  d,
		token:   token,
		handler: h,
		logger:  d.logger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// Connection is the single channel owned by a chat session.
type Connection struct {
	ID      string
	dialer  *Dialer
	token   string
	handler Handler
	logger  *zap.Logger

	mu        sync.RWMutex
	current   *socket
	connected bool

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// socket is one physical websocket; a reconnect gets a new one.
type socket struct {
	conn     *websocket.Conn
	egress   chan event.WsEvent
	closed   chan struct{}
	closeOne sync.Once
}

func (s *socket) close() {
	s.closeOne.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}

// Connected reports the true channel state.
func (c *Connection) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Emit sends out over the channel. It fails fast with ErrNotConnected while the channel
// is down; nothing is queued for later.
func (c *Connection) Emit(out event.Outgoing) error {
	ev, err := event.Encode(out)
	if err != nil {
		return err
	}

	c.mu.RLock()
	sock, connected := c.current, c.connected
	c.mu.RUnlock()

	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}
	if !connected || sock == nil {
		return ErrNotConnected
	}

	timer := time.NewTimer(c.dialer.opts.SendTimeout)
	defer timer.Stop()

	select {
	case sock.egress <- ev:
		return nil
	case <-sock.closed:
		return ErrNotConnected
	case <-c.ctx.Done():
		return ErrClosed
	case <-timer.C:
		return ErrEgressFull
	}
}

// Close tears the channel down and waits for its goroutines. Safe to call repeatedly.
func (c *Connection) Close() error {
	c.once.Do(func() {
		c.cancel()
		c.mu.RLock()
		sock := c.current
		c.mu.RUnlock()
		if sock != nil {
			_ = sock.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(c.dialer.opts.WriteWait))
			sock.close()
		}
	})
	<-c.done
	return nil
}

// Done is closed once the connection has fully stopped.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) run() {
	defer close(c.done)

	attempt := 0
	for {
		sock, err := c.connect()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("channel connect failed",
				zap.String("connection_id", c.ID),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		} else {
			attempt = 0
			c.serve(sock)
		}

		if !c.dialer.opts.Reconnect || c.ctx.Err() != nil {
			return
		}
		if err := c.dialer.backoff.Wait(c.ctx, attempt); err != nil {
			return
		}
		attempt++
	}
}

func (c *Connection) connect() (*socket, error) {
	target, _ := url.Parse(c.dialer.opts.URL)
	if p := c.dialer.opts.TokenQueryParam; p != "" {
		q := target.Query()
		q.Set(p, c.token)
		target.RawQuery = q.Encode()
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, resp, err := c.dialer.ws.DialContext(c.ctx, target.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", target.Redacted(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", target.Redacted(), err)
	}

	return &socket{
		conn:   conn,
		egress: make(chan event.WsEvent, c.dialer.opts.SendBufSize),
		closed: make(chan struct{}),
	}, nil
}

// serve runs the pumps of one socket until it drops.
func (c *Connection) serve(sock *socket) {
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		sock.close()
		return
	}
	c.current = sock
	c.connected = true
	c.mu.Unlock()

	c.logger.Info("channel connected", zap.String("connection_id", c.ID))
	c.handler.HandleState(true)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.readPump(sock)
	}()
	go func() {
		defer wg.Done()
		c.writePump(sock)
	}()
	wg.Wait()

	c.mu.Lock()
	c.current = nil
	c.connected = false
	c.mu.Unlock()

	c.logger.Info("channel disconnected", zap.String("connection_id", c.ID))
	c.handler.HandleState(false)
}

func (c *Connection) readPump(sock *socket) {
	defer sock.close()

	opts := c.dialer.opts
	sock.conn.SetReadLimit(opts.MaxMessageSize)
	_ = sock.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	sock.conn.SetPongHandler(func(string) error {
		return sock.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		var ev event.WsEvent
		if err := sock.conn.ReadJSON(&ev); err != nil {
			c.logReadError(err)
			return
		}
		// any frame proves the peer is alive
		_ = sock.conn.SetReadDeadline(time.Now().Add(opts.PongWait))

		in, err := event.Decode(ev)
		if err != nil {
			c.logger.Warn("dropping channel event",
				zap.String("event", ev.Event),
				zap.Error(err),
			)
			continue
		}
		c.handler.HandleEvent(in)
	}
}

func (c *Connection) writePump(sock *socket) {
	opts := c.dialer.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		sock.close()
	}()

	for {
		select {
		case <-sock.closed:
			return
		case <-c.ctx.Done():
			return
		case ev := <-sock.egress:
			_ = sock.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := sock.conn.WriteJSON(ev); err != nil {
				c.logger.Warn("channel write failed", zap.String("event", ev.Event), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := sock.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.WriteWait)); err != nil {
				c.logger.Warn("channel ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Connection) logReadError(err error) {
	if c.ctx.Err() != nil {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("channel closed by server", zap.String("connection_id", c.ID))
		return
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		c.logger.Warn("channel timed out", zap.String("connection_id", c.ID))
		return
	}
	c.logger.Warn("channel read failed", zap.String("connection_id", c.ID), zap.Error(err))
}
