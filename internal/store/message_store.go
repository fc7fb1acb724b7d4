package store

import (
	"sort"

	"Outreach/internal/model"
)

// MessageStore holds the ordered messages of the active conversation. Every insert goes
// through the messageId de-duplication, so a history fetch and live events may arrive in
// any order.
//
// Not safe for concurrent use; the session loop owns it.
type MessageStore struct {
	conversationID string
	messages       []model.Message
	index          map[string]int // messageId -> position in messages
}

func NewMessageStore() *MessageStore {
	return &MessageStore{index: make(map[string]int)}
}

// ConversationID is the conversation whose messages the store currently holds.
func (s *MessageStore) ConversationID() string {
	return s.conversationID
}

// Reset switches the store to conversationID with an empty list.
func (s *MessageStore) Reset(conversationID string) {
	s.conversationID = conversationID
	s.messages = nil
	s.index = make(map[string]int)
}

// LoadHistory merges a history fetch for conversationID. It returns false and leaves the
// store alone when the store has moved on to another conversation. A message already
// ingested live keeps its content; its status only moves forward.
func (s *MessageStore) LoadHistory(conversationID string, history []model.Message) bool {
	if conversationID != s.conversationID {
		return false
	}
	for _, msg := range history {
		if msg.ConversationID != "" && msg.ConversationID != conversationID {
			continue
		}
		if !s.insert(msg) {
			s.UpdateStatus(msg.MessageID, msg.Status)
		}
	}
	s.sortAndReindex()
	return true
}

// Ingest adds msg unless a message with the same id is already present. Messages for
// other conversations are ignored. It reports whether the list changed.
func (s *MessageStore) Ingest(msg model.Message) bool {
	if msg.MessageID == "" || msg.ConversationID != s.conversationID {
		return false
	}
	if !s.insert(msg) {
		return false
	}
	s.sortAndReindex()
	return true
}

// UpdateStatus moves a message's status forward. Regressions and repeats are no-ops.
func (s *MessageStore) UpdateStatus(messageID string, status model.MessageStatus) bool {
	i, ok := s.index[messageID]
	if !ok {
		return false
	}
	if !s.messages[i].Status.Advances(status) {
		return false
	}
	s.messages[i].Status = status
	return true
}

// Get returns the message with messageID.
func (s *MessageStore) Get(messageID string) (model.Message, bool) {
	i, ok := s.index[messageID]
	if !ok {
		return model.Message{}, false
	}
	return s.messages[i], true
}

// List returns a copy of the messages, oldest first.
func (s *MessageStore) List() []model.Message {
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *MessageStore) Len() int {
	return len(s.messages)
}

// UnreadFrom returns ids of messages sent to userID that are not read yet.
func (s *MessageStore) UnreadFrom(userID string) []string {
	var ids []string
	for _, m := range s.messages {
		if m.ReceiverID == userID && m.Status != model.MessageRead {
			ids = append(ids, m.MessageID)
		}
	}
	return ids
}

func (s *MessageStore) insert(msg model.Message) bool {
	if msg.MessageID == "" {
		return false
	}
	if _, ok := s.index[msg.MessageID]; ok {
		return false
	}
	s.index[msg.MessageID] = len(s.messages)
	s.messages = append(s.messages, msg)
	return true
}

func (s *MessageStore) sortAndReindex() {
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].Before(s.messages[j])
	})
	for i, m := range s.messages {
		s.index[m.MessageID] = i
	}
}
