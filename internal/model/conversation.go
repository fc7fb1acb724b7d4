package model

import (
	"time"
)

// PlaceholderPrefix marks conversations that exist only on the client.
const PlaceholderPrefix = "placeholder-"

// Conversation represents a two-party chat thread
type Conversation struct {
	ConversationID string         `json:"conversationId" bson:"conversation_id"`
	Participants   []Participant  `json:"participants" bson:"participants"`
	LastMessage    *LastMessage   `json:"lastMessage,omitempty" bson:"last_message,omitempty"`
	UnreadCount    map[string]int `json:"unreadCount" bson:"unread_count"`
	UpdatedAt      time.Time      `json:"updatedAt" bson:"updated_at"`

	// Placeholder is set for conversations the backend has not created yet.
	Placeholder bool `json:"placeholder,omitempty" bson:"-"`
}

// Participant represents a user in a conversation
type Participant struct {
	UserID   string    `json:"userId" bson:"user_id"`
	JoinedAt time.Time `json:"joinedAt" bson:"joined_at"`
	Details  *User     `json:"details,omitempty" bson:"details,omitempty"`
}

// LastMessage stores the most recent message preview
type LastMessage struct {
	MessageID   string      `json:"messageId" bson:"message_id"`
	Content     string      `json:"content" bson:"content"`
	SenderID    string      `json:"senderId" bson:"sender_id"`
	MessageType MessageType `json:"messageType" bson:"message_type"`
	SentAt      time.Time   `json:"sentAt" bson:"sent_at"`
}

// PreviewOf builds the conversation preview for msg.
func PreviewOf(msg Message) *LastMessage {
	return &LastMessage{
		MessageID:   msg.MessageID,
		Content:     msg.Content,
		SenderID:    msg.SenderID,
		MessageType: msg.MessageType,
		SentAt:      msg.Timestamp,
	}
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// HasParticipants reports whether the conversation is exactly between a and b.
func (c *Conversation) HasParticipants(a, b string) bool {
	if len(c.Participants) != 2 {
		return false
	}
	return c.HasParticipant(a) && c.HasParticipant(b)
}

// PeerOf returns the participant that is not userID.
func (c *Conversation) PeerOf(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID != userID {
			return p, true
		}
	}
	return Participant{}, false
}

// Unread returns the unread count for userID.
func (c *Conversation) Unread(userID string) int {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[userID]
}

// Clone returns a deep enough copy for handing out of a store.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Participants = append([]Participant(nil), c.Participants...)
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	cp.UnreadCount = make(map[string]int, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		cp.UnreadCount[k] = v
	}
	return &cp
}
