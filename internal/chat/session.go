package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"Outreach/internal/auth"
	"Outreach/internal/event"
	"Outreach/internal/model"
	"Outreach/internal/presence"
	"Outreach/internal/store"
	"Outreach/internal/transport"
)

var (
	ErrClosed               = errors.New("chat session closed")
	ErrNotConnected         = transport.ErrNotConnected
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrUnknownConversation  = errors.New("unknown conversation")
	ErrUnknownRecipient     = errors.New("unknown recipient")
	ErrNoCurrentUser        = errors.New("current user is not known yet")
	ErrEmptyMessage         = errors.New("message has no content")
	ErrInvalidMessageType   = errors.New("invalid message type")
)

const (
	defaultFetchTimeout = 20 * time.Second
	defaultSaveTimeout  = 5 * time.Second
	workQueueSize       = 256
)

// Channel is the real-time connection as the session uses it.
type Channel interface {
	Emit(out event.Outgoing) error
	Close() error
}

// DialFunc opens the channel. h receives state changes and decoded events.
type DialFunc func(ctx context.Context, token string, h transport.Handler) (Channel, error)

// Backend is the REST side of the chat.
type Backend interface {
	CurrentUser(ctx context.Context) (model.User, error)
	Recipients(ctx context.Context) ([]model.User, error)
	Conversations(ctx context.Context) ([]model.Conversation, error)
	Messages(ctx context.Context, conversationID string) ([]model.Message, error)
}

// Cache persists a snapshot of the conversation list between runs.
type Cache interface {
	LoadSnapshot(ctx context.Context, ownerID string) (*model.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
}

type Config struct {
	Backend      Backend
	Dial         DialFunc // nil keeps the session offline
	Cache        Cache    // optional
	Token        string   // bearer credential; empty means the channel is never opened
	Clock        presence.Clock
	TypingWindow time.Duration
	RemoteTTL    time.Duration
	FetchTimeout time.Duration
	Logger       *zap.Logger
}

// Session is the chat synchronization core. Loop-owned fields are only touched by the loop
// goroutine; callers reach them through do and post.
type Session struct {
	cfg    Config
	logger *zap.Logger

	work     chan func()
	quit     chan struct{}
	loopDone chan struct{}

	ctx    context.Context // cancelled on Close; parent of every fetch
	cancel context.CancelFunc
	wg     sync.WaitGroup // in-flight fetches and saves

	startOnce sync.Once
	closeOnce sync.Once

	// loop-owned
	user           model.User
	profileLoaded  bool
	recipients     []model.User
	convs          *store.ConversationStore
	msgs           *store.MessageStore
	typing         *presence.Tracker
	active         string
	activePeer     string
	activeSeq      uint64
	channel        Channel
	connected      bool
	everConnected  bool
	closed         bool
	refreshPending bool
	subscribers    map[int]chan struct{}
	nextSubID      int
	stats          Stats
}

func NewSession(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = presence.SystemClock{}
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:         cfg,
		logger:      cfg.Logger,
		work:        make(chan func(), workQueueSize),
		quit:        make(chan struct{}),
		loopDone:    make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		convs:       store.NewConversationStore(),
		msgs:        store.NewMessageStore(),
		subscribers: make(map[int]chan struct{}),
		stats:       newStats(),
	}
	s.typing = presence.NewTracker(presence.Config{
		Clock:     cfg.Clock,
		Window:    cfg.TypingWindow,
		RemoteTTL: cfg.RemoteTTL,
		Emit:      s.emitTyping,
		Dispatch:  s.post,
		OnChange:  s.notify,
		Logger:    cfg.Logger.Named("typing"),
	})

	go s.loop()
	return s
}

// Start seeds the stores and opens the channel: cached snapshot first, then the current
// user, recipients and conversations from the backend, then the channel if a credential
// exists. Fetch failures are logged and leave the cached state in place.
func (s *Session) Start(ctx context.Context) error {
	err := ErrClosed
	s.startOnce.Do(func() {
		err = s.start(ctx)
	})
	return err
}

func (s *Session) start(ctx context.Context) error {
	if s.cfg.Token == "" {
		s.logger.Info("no bearer token, chat stays offline")
	} else {
		claims, err := auth.Inspect(s.cfg.Token, s.cfg.Clock.Now())
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			s.logger.Warn("bearer token has expired, channel will not be opened")
			s.cfg.Token = ""
		case err != nil:
			s.logger.Debug("bearer token is not a readable jwt", zap.Error(err))
		}
		// the profile fetch may fail; the token still names the user
		if claims != nil && claims.SubjectID() != "" {
			id := claims.SubjectID()
			if err := s.do(func() {
				if s.user.ID == "" {
					s.user = model.User{ID: id, Name: id}
				}
			}); err != nil {
				return err
			}
		}
	}

	cached := s.loadSnapshot(ctx)

	if user, err := s.fetchCurrentUser(ctx); err == nil {
		if err := s.do(func() {
			s.user = user
			s.profileLoaded = true
			s.notify()
		}); err != nil {
			return err
		}
		if !cached {
			s.loadSnapshot(ctx)
		}
	}
	_ = s.RefreshRecipients(ctx)
	_ = s.RefreshConversations(ctx)

	if s.cfg.Token == "" || s.cfg.Dial == nil {
		return nil
	}

	ch, err := s.cfg.Dial(s.ctx, s.cfg.Token, s)
	if err != nil {
		s.logger.Error("failed to open channel", zap.Error(err))
		return err
	}
	var closed bool
	if err := s.do(func() {
		closed = s.closed
		if !closed {
			s.channel = ch
		}
	}); err != nil || closed {
		_ = ch.Close()
		return ErrClosed
	}
	return nil
}

// Close disconnects the channel, cancels every timer and pending fetch, and stops the
// loop. Nothing mutates the stores afterwards.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var ch Channel
		_ = s.do(func() {
			s.closed = true
			s.connected = false
			s.typing.Close()
			ch = s.channel
			s.channel = nil
			s.notify()
		})
		if ch != nil {
			if err := ch.Close(); err != nil {
				s.logger.Warn("channel close failed", zap.Error(err))
			}
		}
		s.cancel()
		s.wg.Wait()

		close(s.quit)
		<-s.loopDone

		for id, sub := range s.subscribers {
			close(sub)
			delete(s.subscribers, id)
		}
		s.logger.Info("chat session closed")
	})
	return nil
}

// Subscribe returns a channel that receives a signal whenever visible state changes. Bursts
// coalesce into one signal. The channel is closed when the session closes.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	var id int
	if err := s.do(func() {
		id = s.nextSubID
		s.nextSubID++
		s.subscribers[id] = ch
	}); err != nil {
		close(ch)
		return ch, func() {}
	}
	return ch, func() {
		_ = s.do(func() {
			if sub, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(sub)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// transport.Handler
// -----------------------------------------------------------------------------

func (s *Session) HandleEvent(in event.Incoming) {
	s.post(func() { s.handleEvent(in) })
}

func (s *Session) HandleState(connected bool) {
	s.post(func() { s.handleState(connected) })
}

// -----------------------------------------------------------------------------
// Loop
// -----------------------------------------------------------------------------

func (s *Session) loop() {
	defer close(s.loopDone)
	for {
		select {
		case f := <-s.work:
			f()
		case <-s.quit:
			return
		}
	}
}

// do runs f on the loop and waits for it.
func (s *Session) do(f func()) error {
	done := make(chan struct{})
	select {
	case s.work <- func() { f(); close(done) }:
	case <-s.loopDone:
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-s.loopDone:
		return ErrClosed
	}
}

// post queues f on the loop without waiting. Must not be called from the loop itself.
func (s *Session) post(f func()) {
	select {
	case s.work <- f:
	case <-s.loopDone:
	}
}

// spawn runs f off the loop, tracked so Close can wait for it.
func (s *Session) spawn(f func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		f(s.ctx)
	}()
}

func (s *Session) notify() {
	for _, sub := range s.subscribers {
		select {
		case sub <- struct{}{}:
		default:
		}
	}
}

func (s *Session) handleState(connected bool) {
	if s.closed || connected == s.connected {
		return
	}
	s.connected = connected
	s.stats.recordState(connected, s.cfg.Clock.Now())

	if !connected {
		s.logger.Info("chat disconnected")
		// stops sent while we were away are lost
		s.typing.ClearRemote()
		s.notify()
		return
	}

	s.logger.Info("chat connected")
	if conv, ok := s.activeConversation(); ok && !conv.Placeholder {
		s.emit(event.JoinConversation{ConversationID: conv.ConversationID})
	}
	if s.everConnected {
		// events missed while offline
		s.scheduleConversationRefresh()
	}
	s.everConnected = true
	s.notify()
}

func (s *Session) emit(out event.Outgoing) error {
	if s.channel == nil || !s.connected {
		return ErrNotConnected
	}
	if err := s.channel.Emit(out); err != nil {
		s.logger.Debug("emit failed", zap.String("event", out.Name()), zap.Error(err))
		return err
	}
	s.stats.Emitted[out.Name()]++
	return nil
}
