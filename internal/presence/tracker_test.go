package presence_test

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"Outreach/internal/presence"
	"Outreach/internal/presence/clocktest"
)

type emission struct {
	peer   string
	signal presence.Signal
}

type recorder struct {
	emitted []emission
}

func (r *recorder) emit(peer string, s presence.Signal) {
	r.emitted = append(r.emitted, emission{peer, s})
}

func (r *recorder) count(s presence.Signal) int {
	n := 0
	for _, e := range r.emitted {
		if e.signal == s {
			n++
		}
	}
	return n
}

func newTracker(t *testing.T, ttl time.Duration) (*presence.Tracker, *clocktest.Clock, *recorder) {
	clock := clocktest.New(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	rec := &recorder{}
	tr := presence.NewTracker(presence.Config{
		Clock:     clock,
		Window:    time.Second,
		RemoteTTL: ttl,
		Emit:      rec.emit,
		Logger:    zaptest.NewLogger(t),
	})
	return tr, clock, rec
}

func TestKeystrokesWithinWindowNeverStop(t *testing.T) {
	tr, clock, rec := newTracker(t, 0)

	tr.Keystroke("u2")
	for i := 0; i < 20; i++ {
		clock.Advance(999 * time.Millisecond)
		tr.Keystroke("u2")
	}

	if got := rec.count(presence.SignalStart); got != 1 {
		t.Fatalf("expected exactly one typing_start, got %d", got)
	}
	if got := rec.count(presence.SignalStop); got != 0 {
		t.Fatalf("expected no typing_stop while typing, got %d", got)
	}
	if clock.Pending() != 1 {
		t.Fatalf("expected a single live timer, got %d", clock.Pending())
	}
}

func TestQuietWindowEmitsExactlyOneStop(t *testing.T) {
	tr, clock, rec := newTracker(t, 0)

	tr.Keystroke("u2")
	clock.Advance(500 * time.Millisecond)
	tr.Keystroke("u2")
	clock.Advance(time.Second)
	clock.Advance(10 * time.Second)

	if got := rec.count(presence.SignalStop); got != 1 {
		t.Fatalf("expected exactly one typing_stop, got %d", got)
	}
	if tr.IsTypingTo("u2") {
		t.Fatal("expected idle after the debounce window")
	}

	// typing again starts a new cycle
	tr.Keystroke("u2")
	if got := rec.count(presence.SignalStart); got != 2 {
		t.Fatalf("expected a second typing_start, got %d", got)
	}
}

func TestStopCancelsPendingTimer(t *testing.T) {
	tr, clock, rec := newTracker(t, 0)

	tr.Keystroke("u2")
	tr.Stop("u2")
	clock.Advance(5 * time.Second)

	if got := rec.count(presence.SignalStop); got != 1 {
		t.Fatalf("expected one typing_stop from Stop, got %d", got)
	}

	tr.Stop("u2")
	if got := rec.count(presence.SignalStop); got != 1 {
		t.Fatalf("expected Stop on an idle peer to be silent, got %d stops", got)
	}
}

func TestPeersAreIndependent(t *testing.T) {
	tr, clock, rec := newTracker(t, 0)

	tr.Keystroke("u2")
	clock.Advance(600 * time.Millisecond)
	tr.Keystroke("u3")
	clock.Advance(600 * time.Millisecond)

	if tr.IsTypingTo("u2") {
		t.Fatal("expected u2 to have expired")
	}
	if !tr.IsTypingTo("u3") {
		t.Fatal("expected u3 to still be typing")
	}
	if len(rec.emitted) != 3 {
		t.Fatalf("expected start,start,stop; got %v", rec.emitted)
	}
}

func TestRemoteTypingSet(t *testing.T) {
	tr, _, _ := newTracker(t, 0)

	tr.RemoteStart("u2")
	tr.RemoteStart("u3")
	tr.RemoteStart("u2")
	if got := tr.Typing(); len(got) != 2 || got[0] != "u2" || got[1] != "u3" {
		t.Fatalf("unexpected typing set %v", got)
	}

	tr.RemoteStop("u2")
	if tr.IsTyping("u2") {
		t.Fatal("expected u2 to be idle after typing_stop")
	}
}

func TestRemoteTTLExpiresLostStop(t *testing.T) {
	tr, clock, _ := newTracker(t, 5*time.Second)

	tr.RemoteStart("u2")
	clock.Advance(4 * time.Second)
	tr.RemoteStart("u2") // refreshes the expiry
	clock.Advance(4 * time.Second)
	if !tr.IsTyping("u2") {
		t.Fatal("expected refreshed peer to still be typing")
	}

	clock.Advance(time.Second)
	if tr.IsTyping("u2") {
		t.Fatal("expected peer to expire after the ttl")
	}
}

func TestCloseSilencesTimers(t *testing.T) {
	tr, clock, rec := newTracker(t, 5*time.Second)

	tr.Keystroke("u2")
	tr.RemoteStart("u3")
	tr.Close()
	clock.Advance(time.Minute)

	if got := rec.count(presence.SignalStop); got != 0 {
		t.Fatalf("expected no emission after close, got %d stops", got)
	}
	tr.Keystroke("u2")
	if got := rec.count(presence.SignalStart); got != 1 {
		t.Fatalf("expected keystrokes after close to be ignored, got %d starts", got)
	}
}

func TestClearRemoteDropsEveryPeer(t *testing.T) {
	clock := clocktest.New(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	changes := 0
	tr := presence.NewTracker(presence.Config{
		Clock:     clock,
		RemoteTTL: 5 * time.Second,
		OnChange:  func() { changes++ },
		Logger:    zaptest.NewLogger(t),
	})

	tr.RemoteStart("u2")
	tr.RemoteStart("u3")
	tr.ClearRemote()
	tr.ClearRemote()

	if len(tr.Typing()) != 0 {
		t.Fatalf("expected empty typing set, got %v", tr.Typing())
	}
	if changes != 3 {
		t.Fatalf("expected two starts and one clear to notify, got %d", changes)
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected ttl timers to be stopped, got %d pending", clock.Pending())
	}
}
