package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"Outreach/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL + "/", Token: "tok"}, zaptest.NewLogger(t))
}

func TestCurrentUserMapsStaffProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("expected bearer header, got %q", got)
		}
		_, _ = w.Write([]byte(`{"data":{"id":42,"First_Name":"Ada","Last_Name":"Lovelace","StaffType":"coordinator","Email":"ada@example.org"}}`))
	})

	u, err := c.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := model.User{ID: "42", Name: "Ada Lovelace", Role: "coordinator", Email: "ada@example.org", Type: model.UserTypeStaff}
	if u != want {
		t.Fatalf("expected %+v, got %+v", want, u)
	}
}

func TestCurrentUserMapsStakeholderProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"s-1","First_Name":"Grace","Last_Name":"","role":"sponsor"}`))
	})

	u, err := c.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Type != model.UserTypeStakeholder || u.Role != "sponsor" || u.Name != "Grace" {
		t.Fatalf("unexpected stakeholder mapping %+v", u)
	}
}

func TestRecipientsAcceptBareArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"u2","name":"Bo","type":"staff"},{"name":"no id"},{"id":"u3","First_Name":"Cy","Last_Name":"D"}]`))
	})

	users, err := c.Recipients(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected entries without id to be skipped, got %+v", users)
	}
	if users[0].Name != "Bo" || users[0].Type != model.UserTypeStaff {
		t.Errorf("unexpected first recipient %+v", users[0])
	}
	if users[1].Name != "Cy D" || users[1].Type != model.UserTypeStakeholder {
		t.Errorf("unexpected second recipient %+v", users[1])
	}
}

func TestMessagesNormalizeAndEscape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/conversations/c%2F1/messages" {
			t.Errorf("expected escaped conversation id, got %s", r.URL.EscapedPath())
		}
		_, _ = w.Write([]byte(`{"data":[
			{"messageId":"m1","senderId":"u2","content":"hi","timestamp":"2024-05-01T10:00:00Z"},
			{"content":"orphan","timestamp":"2024-05-01T10:00:01Z"}
		]}`))
	})

	msgs, err := c.Messages(context.Background(), "c/1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.ConversationID != "c/1" || m.Status != model.MessageSent || m.MessageType != model.MessageTypeText {
		t.Fatalf("expected defaults filled in, got %+v", m)
	}
}

func TestMessagesRequireConversation(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1"}, zaptest.NewLogger(t))
	if _, err := c.Messages(context.Background(), ""); !errors.Is(err, ErrInvalidConversation) {
		t.Fatalf("expected ErrInvalidConversation, got %v", err)
	}
}

func TestConversationsNullData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":null}`))
	})
	list, err := c.Conversations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte(`[{"conversationId":"c1","participants":[{"userId":"u1"},{"userId":"u2"}]}]`))
		}
	})

	list, err := c.Conversations(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || calls.Load() != 3 {
		t.Fatalf("expected success on third attempt, got %d conversations after %d calls", len(list), calls.Load())
	}
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	_, err := c.Conversations(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("expected a 403 StatusError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Recipients(context.Background())
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Fatalf("expected ErrMaxRetriesExceeded, got %v", err)
	}
	if calls.Load() != defaultMaxRetries {
		t.Fatalf("expected %d attempts, got %d", defaultMaxRetries, calls.Load())
	}
}

func TestCallerDeadlineIsRespected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Conversations(ctx)
	if !errors.Is(err, ErrOperationTimeout) {
		t.Fatalf("expected ErrOperationTimeout, got %v", err)
	}
}
