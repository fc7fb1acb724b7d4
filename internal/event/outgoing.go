package event

import (
	"encoding/json"
	"fmt"

	"Outreach/internal/model"
)

// Outgoing is an event the client emits over the channel.
type Outgoing interface {
	Name() string
}

type JoinConversation struct {
	ConversationID string `json:"conversationId"`
}

// SendMessage asks the server to persist and deliver a message. ConversationID is empty
// for the first message to a recipient; the server creates the conversation.
type SendMessage struct {
	ConversationID string             `json:"conversationId,omitempty"`
	ReceiverID     string             `json:"receiverId"`
	Content        string             `json:"content"`
	MessageType    model.MessageType  `json:"messageType"`
	Attachments    []model.Attachment `json:"attachments,omitempty"`
}

type MarkRead struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds,omitempty"`
}

type TypingStart struct{ model.TypingIndicator }

type TypingStop struct{ model.TypingIndicator }

func (JoinConversation) Name() string { return EventJoinConversation }
func (SendMessage) Name() string      { return EventSendMessage }
func (MarkRead) Name() string         { return EventMarkRead }
func (TypingStart) Name() string      { return EventTypingStart }
func (TypingStop) Name() string       { return EventTypingStop }

// Encode wraps an outgoing payload into a frame.
func Encode(out Outgoing) (WsEvent, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return WsEvent{}, fmt.Errorf("encode %s: %w", out.Name(), err)
	}
	return WsEvent{Event: out.Name(), Data: data}, nil
}
