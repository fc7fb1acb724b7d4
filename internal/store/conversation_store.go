package store

import (
	"errors"
	"sort"
	"time"

	"Outreach/internal/model"
)

var ErrConversationNotFound = errors.New("conversation not found")

// countedWindow bounds how many counted message ids are remembered per conversation.
const countedWindow = 256

// ConversationStore keeps the conversation summaries known to the client. Persisted
// conversations are keyed by id; placeholders are keyed by recipient so a recipient never
// gets more than one.
//
// Not safe for concurrent use; the session loop owns it.
type ConversationStore struct {
	conversations map[string]*model.Conversation
	placeholders  map[string]*model.Conversation // recipientID -> placeholder
	counted       map[string]*idSet              // conversationID -> message ids already counted unread
}

// idSet remembers the last n ids added, oldest evicted first.
type idSet struct {
	ids   map[string]struct{}
	order []string
}

func (w *idSet) has(id string) bool {
	_, ok := w.ids[id]
	return ok
}

func (w *idSet) add(id string) {
	if len(w.order) == countedWindow {
		delete(w.ids, w.order[0])
		w.order = w.order[1:]
	}
	w.ids[id] = struct{}{}
	w.order = append(w.order, id)
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]*model.Conversation),
		placeholders:  make(map[string]*model.Conversation),
		counted:       make(map[string]*idSet),
	}
}

// List returns persisted conversations, most recently updated first.
func (s *ConversationStore) List() []*model.Conversation {
	list := make([]*model.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		list = append(list, c.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].ConversationID < list[j].ConversationID
		}
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
	return list
}

func (s *ConversationStore) Len() int {
	return len(s.conversations)
}

// Get looks up a persisted conversation or a placeholder by id.
func (s *ConversationStore) Get(id string) (*model.Conversation, bool) {
	if c, ok := s.conversations[id]; ok {
		return c.Clone(), true
	}
	for _, p := range s.placeholders {
		if p.ConversationID == id {
			return p.Clone(), true
		}
	}
	return nil, false
}

// FindByParticipants returns the persisted conversation between a and b.
func (s *ConversationStore) FindByParticipants(a, b string) (*model.Conversation, bool) {
	var found *model.Conversation
	for _, c := range s.conversations {
		if !c.HasParticipants(a, b) {
			continue
		}
		// more than one thread for a pair: the most recent one is canonical
		if found == nil || c.UpdatedAt.After(found.UpdatedAt) {
			found = c
		}
	}
	if found == nil {
		return nil, false
	}
	return found.Clone(), true
}

// UpsertFromIncomingMessage moves the message's conversation to the top of the list. It
// returns false, changing nothing, when the conversation is not known.
func (s *ConversationStore) UpsertFromIncomingMessage(msg model.Message) bool {
	c, ok := s.conversations[msg.ConversationID]
	if !ok {
		return false
	}
	// an older message replayed after a newer one must not roll the preview back
	if c.LastMessage != nil && msg.Timestamp.Before(c.LastMessage.SentAt) {
		return true
	}
	c.LastMessage = model.PreviewOf(msg)
	if msg.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = msg.Timestamp
	}
	return true
}

// IncrementUnread counts messageID as unread for userID. A message is counted at most
// once, however often it is re-delivered, and the message already shown as the preview
// is never counted. It reports whether the count moved.
func (s *ConversationStore) IncrementUnread(conversationID, messageID, userID string) bool {
	c, ok := s.conversations[conversationID]
	if !ok || userID == "" || messageID == "" {
		return false
	}
	if c.LastMessage != nil && c.LastMessage.MessageID == messageID {
		return false
	}
	seen, ok := s.counted[conversationID]
	if !ok {
		seen = &idSet{ids: make(map[string]struct{})}
		s.counted[conversationID] = seen
	}
	if seen.has(messageID) {
		return false
	}
	seen.add(messageID)

	if c.UnreadCount == nil {
		c.UnreadCount = make(map[string]int)
	}
	c.UnreadCount[userID]++
	return true
}

// ApplyReadAck records a server acknowledgement that userID has read the conversation.
// This is the only way an unread count goes down short of a full refresh. Counted ids
// are kept, so a read message re-delivered later stays read.
func (s *ConversationStore) ApplyReadAck(conversationID, userID string) {
	c, ok := s.conversations[conversationID]
	if !ok || c.UnreadCount == nil {
		return
	}
	delete(c.UnreadCount, userID)
}

// Merge replaces the persisted conversations with the server's canonical list. Local
// previews newer than the server's survive, since live events can beat the refresh.
func (s *ConversationStore) Merge(serverList []model.Conversation) {
	next := make(map[string]*model.Conversation, len(serverList))
	for i := range serverList {
		incoming := serverList[i].Clone()
		incoming.Placeholder = false
		if incoming.ConversationID == "" {
			continue
		}
		if local, ok := s.conversations[incoming.ConversationID]; ok && local.UpdatedAt.After(incoming.UpdatedAt) {
			incoming.UpdatedAt = local.UpdatedAt
			incoming.LastMessage = local.LastMessage
		}
		next[incoming.ConversationID] = incoming
	}
	s.conversations = next
	for id := range s.counted {
		if _, ok := next[id]; !ok {
			delete(s.counted, id)
		}
	}

	// a placeholder whose pair now exists on the server is obsolete
	for recipientID, p := range s.placeholders {
		for _, c := range next {
			if samePair(p, c) {
				delete(s.placeholders, recipientID)
				break
			}
		}
	}
}

// Placeholder returns the placeholder conversation for recipientID, if any.
func (s *ConversationStore) Placeholder(recipientID string) (*model.Conversation, bool) {
	p, ok := s.placeholders[recipientID]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// PutPlaceholder registers a client-only conversation with recipientID.
func (s *ConversationStore) PutPlaceholder(recipientID string, c *model.Conversation) {
	cp := c.Clone()
	cp.Placeholder = true
	s.placeholders[recipientID] = cp
}

// FindPlaceholderByParticipants returns the placeholder between a and b.
func (s *ConversationStore) FindPlaceholderByParticipants(a, b string) (*model.Conversation, bool) {
	for _, p := range s.placeholders {
		if p.HasParticipants(a, b) {
			return p.Clone(), true
		}
	}
	return nil, false
}

// Promote turns the placeholder with placeholderID into the persisted conversation
// realID. If realID is already known the placeholder is simply dropped.
func (s *ConversationStore) Promote(placeholderID, realID string, at time.Time) (*model.Conversation, error) {
	for recipientID, p := range s.placeholders {
		if p.ConversationID != placeholderID {
			continue
		}
		delete(s.placeholders, recipientID)
		if existing, ok := s.conversations[realID]; ok {
			return existing.Clone(), nil
		}
		p.ConversationID = realID
		p.Placeholder = false
		if at.After(p.UpdatedAt) {
			p.UpdatedAt = at
		}
		s.conversations[realID] = p
		return p.Clone(), nil
	}
	return nil, ErrConversationNotFound
}

// Placeholders returns every placeholder, for snapshots and diagnostics.
func (s *ConversationStore) Placeholders() []*model.Conversation {
	list := make([]*model.Conversation, 0, len(s.placeholders))
	for _, p := range s.placeholders {
		list = append(list, p.Clone())
	}
	return list
}

func samePair(a, b *model.Conversation) bool {
	if len(a.Participants) != 2 {
		return false
	}
	return b.HasParticipants(a.Participants[0].UserID, a.Participants[1].UserID)
}
