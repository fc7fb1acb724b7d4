package presence

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTypingWindow = time.Second
	DefaultRemoteTTL    = 5 * time.Second
)

// Signal is what the local side asks to be emitted to a peer.
type Signal int

const (
	SignalStart Signal = iota
	SignalStop
)

func (s Signal) String() string {
	if s == SignalStart {
		return "typing_start"
	}
	return "typing_stop"
}

// Emitter sends a typing signal to peer.
type Emitter func(peer string, s Signal)

// Dispatcher runs f on the goroutine that owns the tracker. Timer callbacks go
// through it, so the tracker itself needs no locking.
type Dispatcher func(f func())

type Config struct {
	Clock     Clock
	Window    time.Duration // local debounce before an automatic typing_stop
	RemoteTTL time.Duration // expiry for remote peers whose stop never arrived; <= 0 disables
	Emit      Emitter
	Dispatch  Dispatcher
	OnChange  func() // remote typing set changed
	Logger    *zap.Logger
}

type timerEntry struct {
	timer Timer
	gen   uint64
}

// Tracker follows typing state in both directions: the peers currently typing toward
// this user, and this user's own typing toward each peer.
type Tracker struct {
	cfg Config

	local  map[string]*timerEntry // peers we are typing to
	remote map[string]*timerEntry // peers typing to us
	gen    uint64
	closed bool
}

func NewTracker(cfg Config) *Tracker {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultTypingWindow
	}
	if cfg.Dispatch == nil {
		cfg.Dispatch = func(f func()) { f() }
	}
	if cfg.Emit == nil {
		cfg.Emit = func(string, Signal) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Tracker{
		cfg:    cfg,
		local:  make(map[string]*timerEntry),
		remote: make(map[string]*timerEntry),
	}
}

// -----------------------------------------------------------------
// Local side
// -----------------------------------------------------------------

// Keystroke records local typing toward peer. typing_start goes out only when the peer
// was idle; every keystroke pushes the automatic typing_stop back by one window.
func (t *Tracker) Keystroke(peer string) {
	if t.closed || peer == "" {
		return
	}
	entry, typing := t.local[peer]
	if !typing {
		entry = &timerEntry{}
		t.local[peer] = entry
		t.cfg.Emit(peer, SignalStart)
	} else if entry.timer != nil {
		entry.timer.Stop()
	}

	t.gen++
	gen := t.gen
	entry.gen = gen
	entry.timer = t.cfg.Clock.AfterFunc(t.cfg.Window, func() {
		t.cfg.Dispatch(func() { t.expireLocal(peer, gen) })
	})
}

// Stop ends local typing toward peer right away.
func (t *Tracker) Stop(peer string) {
	entry, typing := t.local[peer]
	if !typing {
		return
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	delete(t.local, peer)
	if !t.closed {
		t.cfg.Emit(peer, SignalStop)
	}
}

// IsTypingTo reports whether the local user is in the typing state toward peer.
func (t *Tracker) IsTypingTo(peer string) bool {
	_, ok := t.local[peer]
	return ok
}

func (t *Tracker) expireLocal(peer string, gen uint64) {
	entry, ok := t.local[peer]
	if !ok || entry.gen != gen || t.closed {
		// replaced by a newer keystroke, stopped, or torn down
		return
	}
	delete(t.local, peer)
	t.cfg.Emit(peer, SignalStop)
	t.cfg.Logger.Debug("typing debounce expired", zap.String("peer", peer))
}

// -----------------------------------------------------------------
// Remote side
// -----------------------------------------------------------------

// RemoteStart marks peer as typing toward this user.
func (t *Tracker) RemoteStart(peer string) {
	if t.closed || peer == "" {
		return
	}
	entry, existed := t.remote[peer]
	if !existed {
		entry = &timerEntry{}
		t.remote[peer] = entry
	} else if entry.timer != nil {
		entry.timer.Stop()
		entry.timer = nil
	}

	if t.cfg.RemoteTTL > 0 {
		t.gen++
		gen := t.gen
		entry.gen = gen
		entry.timer = t.cfg.Clock.AfterFunc(t.cfg.RemoteTTL, func() {
			t.cfg.Dispatch(func() { t.expireRemote(peer, gen) })
		})
	}
	if !existed {
		t.changed()
	}
}

// RemoteStop clears peer's typing state.
func (t *Tracker) RemoteStop(peer string) {
	entry, ok := t.remote[peer]
	if !ok {
		return
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	delete(t.remote, peer)
	t.changed()
}

// IsTyping reports whether peer is typing toward this user.
func (t *Tracker) IsTyping(peer string) bool {
	_, ok := t.remote[peer]
	return ok
}

// Typing returns the peers typing toward this user, sorted.
func (t *Tracker) Typing() []string {
	peers := make([]string, 0, len(t.remote))
	for p := range t.remote {
		peers = append(peers, p)
	}
	sort.Strings(peers)
	return peers
}

// ClearRemote forgets every remote peer, e.g. after the channel dropped and their stops
// may have been lost.
func (t *Tracker) ClearRemote() {
	if len(t.remote) == 0 {
		return
	}
	for peer, e := range t.remote {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(t.remote, peer)
	}
	t.changed()
}

func (t *Tracker) expireRemote(peer string, gen uint64) {
	entry, ok := t.remote[peer]
	if !ok || entry.gen != gen || t.closed {
		return
	}
	delete(t.remote, peer)
	t.cfg.Logger.Debug("remote typing expired", zap.String("peer", peer))
	t.changed()
}

func (t *Tracker) changed() {
	if t.cfg.OnChange != nil {
		t.cfg.OnChange()
	}
}

// Close cancels every timer. No signal is emitted afterwards.
func (t *Tracker) Close() {
	if t.closed {
		return
	}
	t.closed = true
	for peer, e := range t.local {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(t.local, peer)
	}
	for peer, e := range t.remote {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(t.remote, peer)
	}
}
