package chat

import (
	"Outreach/internal/model"
)

// State is the summary the UI polls for its header.
type State struct {
	Connected          bool                `json:"connected"`
	CurrentUser        model.User          `json:"currentUser"`
	ActiveConversation *model.Conversation `json:"activeConversation,omitempty"`
	TypingText         string              `json:"typingText"`
	Typing             bool                `json:"typing"` // the user is typing to the active peer
}

func (s *Session) State() State {
	var st State
	_ = s.do(func() {
		st = State{
			Connected:   s.connected,
			CurrentUser: s.user,
			TypingText:  s.typingText(),
			Typing:      s.activePeer != "" && s.typing.IsTypingTo(s.activePeer),
		}
		if conv, ok := s.activeConversation(); ok {
			st.ActiveConversation = conv
		}
	})
	return st
}

// Conversations returns the persisted conversations, most recent first.
func (s *Session) Conversations() []*model.Conversation {
	var list []*model.Conversation
	_ = s.do(func() { list = s.convs.List() })
	return list
}

// Messages returns the active conversation's messages in timestamp order.
func (s *Session) Messages() []model.Message {
	var list []model.Message
	_ = s.do(func() { list = s.msgs.List() })
	return list
}

func (s *Session) Recipients() []model.User {
	var list []model.User
	_ = s.do(func() { list = append(list, s.recipients...) })
	return list
}

func (s *Session) Connected() bool {
	var connected bool
	_ = s.do(func() { connected = s.connected })
	return connected
}

// Active returns the active conversation, which may be a placeholder.
func (s *Session) Active() (*model.Conversation, bool) {
	var (
		conv *model.Conversation
		ok   bool
	)
	_ = s.do(func() { conv, ok = s.activeConversation() })
	return conv, ok
}

func (s *Session) CurrentUser() (model.User, bool) {
	var u model.User
	_ = s.do(func() { u = s.user })
	return u, u.ID != ""
}

// TypingText describes who is typing toward the current user.
func (s *Session) TypingText() string {
	var text string
	_ = s.do(func() { text = s.typingText() })
	return text
}

// DisplayItems derives the sidebar rows from the current stores.
func (s *Session) DisplayItems() []DisplayItem {
	var items []DisplayItem
	_ = s.do(func() {
		items = DisplayItems(DisplayInput{
			CurrentUserID: s.user.ID,
			Conversations: s.convs.List(),
			Recipients:    s.recipients,
			ActiveID:      s.active,
			ActivePeerID:  s.activePeer,
			Typing:        s.typing.Typing(),
		})
	})
	return items
}

func (s *Session) Stats() Stats {
	var st Stats
	_ = s.do(func() {
		st = s.stats.clone()
		st.Connected = s.connected
		st.ActiveConversation = s.active
		st.Conversations = s.convs.Len()
		st.Placeholders = len(s.convs.Placeholders())
		st.Messages = s.msgs.Len()
		st.Typing = len(s.typing.Typing())
	})
	return st
}

func (s *Session) typingText() string {
	peers := s.typing.Typing()
	names := make([]string, 0, len(peers))
	for _, id := range peers {
		names = append(names, s.nameOf(id))
	}
	return TypingText(names)
}

// nameOf resolves a display name from anything the session knows about userID.
func (s *Session) nameOf(userID string) string {
	if r, ok := s.recipient(userID); ok {
		return r.DisplayName()
	}
	for _, c := range s.convs.List() {
		for _, p := range c.Participants {
			if p.UserID == userID && p.Details != nil && p.Details.Name != "" {
				return p.Details.Name
			}
		}
	}
	return userID
}
