package model

import (
	"time"
)

// MessageStatus is the delivery state of a message. It only ever moves forward:
// sent -> delivered -> read.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

// Rank orders statuses. Unknown values rank below sent.
func (s MessageStatus) Rank() int {
	switch s {
	case MessageSent:
		return 1
	case MessageDelivered:
		return 2
	case MessageRead:
		return 3
	default:
		return 0
	}
}

// Advances reports whether moving from s to next is forward progress.
func (s MessageStatus) Advances(next MessageStatus) bool {
	return next.Rank() > s.Rank()
}

// Valid reports whether s is one of the known statuses.
func (s MessageStatus) Valid() bool {
	return s.Rank() > 0
}

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	}
	return false
}

// Attachment is a file or image reference carried by a message
type Attachment struct {
	URL      string `json:"url" bson:"url"`
	Name     string `json:"name" bson:"name"`
	MimeType string `json:"mimeType,omitempty" bson:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty" bson:"size,omitempty"`
}

// Message represents a chat message as delivered by the backend
type Message struct {
	MessageID       string        `json:"messageId" bson:"message_id"`
	SenderID        string        `json:"senderId" bson:"sender_id"`
	ReceiverID      string        `json:"receiverId" bson:"receiver_id"`
	ConversationID  string        `json:"conversationId" bson:"conversation_id"`
	Content         string        `json:"content" bson:"content"`
	MessageType     MessageType   `json:"messageType" bson:"message_type"`
	Attachments     []Attachment  `json:"attachments" bson:"attachments"`
	Timestamp       time.Time     `json:"timestamp" bson:"timestamp"`
	Status          MessageStatus `json:"status" bson:"status"`
	SenderDetails   *User         `json:"senderDetails,omitempty" bson:"sender_details,omitempty"`
	ReceiverDetails *User         `json:"receiverDetails,omitempty" bson:"receiver_details,omitempty"`
}

// Before orders messages by timestamp, then by id so equal timestamps stay stable.
func (m Message) Before(other Message) bool {
	if m.Timestamp.Equal(other.Timestamp) {
		return m.MessageID < other.MessageID
	}
	return m.Timestamp.Before(other.Timestamp)
}

// ErrorPayload is the body of message_error / typing_error events
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Normalize fills the defaults older backends leave out.
func (m *Message) Normalize() {
	if m.Status == "" {
		m.Status = MessageSent
	}
	if m.MessageType == "" {
		m.MessageType = MessageTypeText
	}
}
