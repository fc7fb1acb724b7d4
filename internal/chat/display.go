package chat

import (
	"sort"
	"strings"
	"time"

	"Outreach/internal/model"
)

type DisplayKind string

const (
	DisplayConversation DisplayKind = "conversation"
	DisplayRecipient    DisplayKind = "recipient"
)

// DisplayItem is one row of the chat sidebar.
type DisplayItem struct {
	Token     string      `json:"token"` // pass to SelectConversation
	Kind      DisplayKind `json:"kind"`
	Title     string      `json:"title"`
	PeerID    string      `json:"peerId"`
	PeerType  string      `json:"peerType,omitempty"`
	Preview   string      `json:"preview,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt,omitempty"`
	Unread    int         `json:"unread"`
	Active    bool        `json:"active"`
	Typing    bool        `json:"typing"`
}

// DisplayInput is the canonical state DisplayItems derives from.
type DisplayInput struct {
	CurrentUserID string
	Conversations []*model.Conversation // sorted by recency
	Recipients    []model.User
	ActiveID      string
	ActivePeerID  string
	Typing        []string
}

// DisplayItems merges conversations and recipients into sidebar rows. Conversations come
// first in recency order; recipients without a conversation follow as "start chat" rows,
// sorted by name. A recipient never appears twice, and a pair with several threads shows
// only the active one, else the most recent.
func DisplayItems(in DisplayInput) []DisplayItem {
	typing := make(map[string]bool, len(in.Typing))
	for _, id := range in.Typing {
		typing[id] = true
	}
	names := make(map[string]model.User, len(in.Recipients))
	for _, r := range in.Recipients {
		names[r.ID] = r
	}

	items := make([]DisplayItem, 0, len(in.Conversations)+len(in.Recipients))
	canonical := make(map[string]string, len(in.Conversations)) // peerID -> conversationID
	for _, c := range in.Conversations {
		peer, _ := c.PeerOf(in.CurrentUserID)
		if _, seen := canonical[peer.UserID]; !seen || c.ConversationID == in.ActiveID {
			canonical[peer.UserID] = c.ConversationID
		}
	}

	covered := make(map[string]bool, len(in.Conversations))
	for _, c := range in.Conversations {
		peer, _ := c.PeerOf(in.CurrentUserID)
		if peer.UserID != "" && canonical[peer.UserID] != c.ConversationID {
			continue
		}
		covered[peer.UserID] = true

		item := DisplayItem{
			Token:     c.ConversationID,
			Kind:      DisplayConversation,
			Title:     peerTitle(peer, names),
			PeerID:    peer.UserID,
			UpdatedAt: c.UpdatedAt,
			Unread:    c.Unread(in.CurrentUserID),
			Active:    c.ConversationID == in.ActiveID,
			Typing:    typing[peer.UserID],
		}
		if peer.Details != nil {
			item.PeerType = string(peer.Details.Type)
		}
		if c.LastMessage != nil {
			item.Preview = preview(c.LastMessage)
		}
		items = append(items, item)
	}

	rest := make([]model.User, 0, len(in.Recipients))
	for _, r := range in.Recipients {
		if r.ID == "" || r.ID == in.CurrentUserID || covered[r.ID] {
			continue
		}
		covered[r.ID] = true
		rest = append(rest, r)
	}
	sort.Slice(rest, func(i, j int) bool {
		a, b := strings.ToLower(rest[i].DisplayName()), strings.ToLower(rest[j].DisplayName())
		if a == b {
			return rest[i].ID < rest[j].ID
		}
		return a < b
	})
	activeIsConversation := false
	for _, it := range items {
		if it.Active {
			activeIsConversation = true
			break
		}
	}
	for _, r := range rest {
		items = append(items, DisplayItem{
			Token:    RecipientToken(r.ID),
			Kind:     DisplayRecipient,
			Title:    r.DisplayName(),
			PeerID:   r.ID,
			PeerType: string(r.Type),
			Active:   !activeIsConversation && in.ActivePeerID == r.ID,
			Typing:   typing[r.ID],
		})
	}
	return items
}

// TypingText renders the typing indicator line, or "" when nobody is typing.
func TypingText(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0] + " is typing..."
	case 2:
		return names[0] + " and " + names[1] + " are typing..."
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1] + " are typing..."
	}
}

func peerTitle(peer model.Participant, names map[string]model.User) string {
	if peer.Details != nil && peer.Details.Name != "" {
		return peer.Details.Name
	}
	if u, ok := names[peer.UserID]; ok {
		return u.DisplayName()
	}
	return peer.UserID
}

func preview(lm *model.LastMessage) string {
	switch lm.MessageType {
	case model.MessageTypeImage:
		if lm.Content == "" {
			return "[image]"
		}
	case model.MessageTypeFile:
		if lm.Content == "" {
			return "[file]"
		}
	}
	return lm.Content
}
