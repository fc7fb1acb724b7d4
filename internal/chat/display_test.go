package chat

import (
	"testing"
	"time"

	"Outreach/internal/model"
)

func TestDisplayItems(t *testing.T) {
	c1 := conversation("c1", time.Minute, "me", "u2")
	c1.UnreadCount["me"] = 3
	c1.LastMessage = &model.LastMessage{MessageID: "m1", MessageType: model.MessageTypeImage}
	c2 := conversation("c2", 2*time.Minute, "me", "u3")
	c2.Participants[1].Details = &model.User{ID: "u3", Name: "Cyrus", Type: model.UserTypeStaff}

	in := DisplayInput{
		CurrentUserID: "me",
		Conversations: []*model.Conversation{&c2, &c1},
		Recipients: []model.User{
			{ID: "me", Name: "Me"},
			{ID: "u2", Name: "Bo"},
			{ID: "u9", Name: "zed"},
			{ID: "u8", Name: "Amy"},
			{ID: "u8", Name: "Amy"},
		},
		ActiveID: "c1",
		Typing:   []string{"u2", "u9"},
	}

	items := DisplayItems(in)
	want := []struct {
		token string
		kind  DisplayKind
		title string
	}{
		{"c2", DisplayConversation, "Cyrus"},
		{"c1", DisplayConversation, "Bo"},
		{"recipient-u8", DisplayRecipient, "Amy"},
		{"recipient-u9", DisplayRecipient, "zed"},
	}
	if len(items) != len(want) {
		t.Fatalf("expected %d rows, got %d: %+v", len(want), len(items), items)
	}
	for i, w := range want {
		if items[i].Token != w.token || items[i].Kind != w.kind || items[i].Title != w.title {
			t.Errorf("row %d: expected %s/%s/%s, got %+v", i, w.token, w.kind, w.title, items[i])
		}
	}

	c1Row := items[1]
	if !c1Row.Active || c1Row.Unread != 3 || !c1Row.Typing || c1Row.Preview != "[image]" {
		t.Fatalf("unexpected c1 row %+v", c1Row)
	}
	if items[0].PeerType != string(model.UserTypeStaff) {
		t.Fatalf("expected peer type from participant details, got %q", items[0].PeerType)
	}
	if !items[3].Typing || items[2].Active {
		t.Fatalf("unexpected recipient rows %+v", items[2:])
	}
}

func TestDisplayItemsShowsOneThreadPerPeer(t *testing.T) {
	newer := conversation("c2", 2*time.Minute, "me", "u2")
	older := conversation("c1", time.Minute, "me", "u2")
	other := conversation("c3", 0, "me", "u3")
	convs := []*model.Conversation{&newer, &older, &other}

	items := DisplayItems(DisplayInput{CurrentUserID: "me", Conversations: convs})
	if len(items) != 2 || items[0].Token != "c2" || items[1].Token != "c3" {
		t.Fatalf("expected the most recent thread per peer, got %+v", items)
	}

	items = DisplayItems(DisplayInput{CurrentUserID: "me", Conversations: convs, ActiveID: "c1"})
	if len(items) != 2 || items[0].Token != "c1" || !items[0].Active {
		t.Fatalf("expected the active thread to win for its peer, got %+v", items)
	}
}

func TestDisplayItemsMarksPlaceholderRecipientActive(t *testing.T) {
	items := DisplayItems(DisplayInput{
		CurrentUserID: "me",
		Recipients:    []model.User{{ID: "u2", Name: "Bo"}, {ID: "u3", Name: "Cy"}},
		ActiveID:      model.PlaceholderPrefix + "x",
		ActivePeerID:  "u3",
	})
	if len(items) != 2 || items[0].Active || !items[1].Active {
		t.Fatalf("expected the placeholder's recipient row to be active, got %+v", items)
	}
}

func TestTypingText(t *testing.T) {
	tests := []struct {
		names []string
		want  string
	}{
		{nil, ""},
		{[]string{"Bo"}, "Bo is typing..."},
		{[]string{"Bo", "Cy"}, "Bo and Cy are typing..."},
		{[]string{"Al", "Bo", "Cy"}, "Al, Bo and Cy are typing..."},
	}
	for _, tt := range tests {
		if got := TypingText(tt.names); got != tt.want {
			t.Errorf("TypingText(%v) = %q, want %q", tt.names, got, tt.want)
		}
	}
}
