package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Outreach/internal/event"
)

// EventState is the only frame the push feed sends: the full UI state.
const EventState = "chat_state"

type Options struct {
	AllowedOrigins []string // empty allows any origin
	SendBuffer     int
}

// Hub fans session state out to every connected UI client. Clients are added and
// removed by the run loop only.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan event.WsEvent

	upgrader websocket.Upgrader
	opts     Options
	logger   *zap.Logger

	latest   atomic.Pointer[event.WsEvent]
	sent     atomic.Int64
	dropped  atomic.Int64
	kicked   atomic.Int64
	accepted atomic.Int64
	online   atomic.Int64

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func NewHub(opts Options, logger *zap.Logger) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = sendBufSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan event.WsEvent, 64),
		opts:       opts,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	// run manager loop
	go h.run()

	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			for id, c := range h.clients {
				delete(h.clients, id)
				c.Close()
			}
			h.online.Store(0)
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case ev := <-h.broadcast:
			h.publish(ev)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.clients[c.ID] = c
	h.accepted.Add(1)
	h.online.Store(int64(len(h.clients)))
	h.logger.Info("ui client registered", zap.String("client_id", c.ID))

	// late joiners get the current state right away
	if ev := h.latest.Load(); ev != nil {
		h.deliver(c, *ev)
	}
}

func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	h.online.Store(int64(len(h.clients)))
	c.Close()
	h.logger.Info("ui client removed", zap.String("client_id", c.ID))
}

func (h *Hub) publish(ev event.WsEvent) {
	for _, c := range h.clients {
		h.deliver(c, ev)
	}
}

// deliver never blocks the run loop: a client whose buffer is full is kicked.
func (h *Hub) deliver(c *Client, ev event.WsEvent) {
	if c.SafeSend(ev) {
		h.sent.Add(1)
		return
	}
	h.dropped.Add(1)
	if kickOnFull && !c.IsClosed() {
		h.logger.Warn("egress full, kicking ui client", zap.String("client_id", c.ID))
		h.kicked.Add(1)
		delete(h.clients, c.ID)
		h.online.Store(int64(len(h.clients)))
		c.Close()
	}
}

// Publish queues ev for every client and remembers it for clients that join later.
func (h *Hub) Publish(ev event.WsEvent) {
	h.latest.Store(&ev)
	select {
	case h.broadcast <- ev:
	case <-h.ctx.Done():
	}
}

// Follow publishes render() once, then again after every signal on updates, until updates
// is closed or ctx ends. Signals that arrive while rendering coalesce.
func (h *Hub) Follow(ctx context.Context, updates <-chan struct{}, render func() any) {
	emit := func() {
		data, err := json.Marshal(render())
		if err != nil {
			h.logger.Error("failed to encode ui state", zap.Error(err))
			return
		}
		h.Publish(event.WsEvent{Event: EventState, Data: data})
	}

	emit()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			emit()
		}
	}
}

// ServeWS upgrades r and attaches a new UI client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("ui upgrade failed", zap.Error(err))
		return
	}

	c := newClient(conn, h)
	select {
	case h.register <- c:
		go c.ReadMessages()
		go c.WriteMessages()
	case <-time.After(registerTimeout):
		h.logger.Warn("failed to register ui client: timeout", zap.String("client_id", c.ID))
		_ = conn.Close()
	case <-h.ctx.Done():
		_ = conn.Close()
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Stop closes every client and stops the run loop.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		<-h.done
	})
}
