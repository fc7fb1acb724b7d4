package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"Outreach/internal/model"
)

// Incoming event names
const (
	EventNewMessage       = "new_message"
	EventMessageSent      = "message_sent"
	EventMessageDelivered = "message_delivered"
	EventMessageRead      = "message_read"
	EventTypingStart      = "typing_start"
	EventTypingStop       = "typing_stop"
	EventMessageError     = "message_error"
	EventTypingError      = "typing_error"
)

// Outgoing event names. typing_start and typing_stop are shared with the incoming side.
const (
	EventJoinConversation = "join_conversation"
	EventSendMessage      = "send_message"
	EventMarkRead         = "mark_read"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid event payload")
)

// WsEvent is the frame exchanged over the channel
type WsEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Incoming is a decoded, validated server event.
type Incoming interface {
	Name() string
}

// MessageReceived - a message from a peer (new_message)
type MessageReceived struct{ Message model.Message }

// MessageSent - the server echo of a message this user sent (message_sent)
type MessageSent struct{ Message model.Message }

type MessageDelivered struct{ Receipt model.DeliveryReceipt }

type MessageRead struct{ Receipt model.ReadReceipt }

type TypingStarted struct{ Indicator model.TypingIndicator }

type TypingStopped struct{ Indicator model.TypingIndicator }

// ChannelError carries message_error and typing_error
type ChannelError struct {
	Event   string
	Payload model.ErrorPayload
}

func (MessageReceived) Name() string  { return EventNewMessage }
func (MessageSent) Name() string      { return EventMessageSent }
func (MessageDelivered) Name() string { return EventMessageDelivered }
func (MessageRead) Name() string      { return EventMessageRead }
func (TypingStarted) Name() string    { return EventTypingStart }
func (TypingStopped) Name() string    { return EventTypingStop }
func (e ChannelError) Name() string   { return e.Event }

// Decode validates ev and turns it into its typed variant.
func Decode(ev WsEvent) (Incoming, error) {
	switch ev.Event {
	case EventNewMessage:
		msg, err := decodeMessage(ev)
		if err != nil {
			return nil, err
		}
		return MessageReceived{Message: msg}, nil
	case EventMessageSent:
		msg, err := decodeMessage(ev)
		if err != nil {
			return nil, err
		}
		return MessageSent{Message: msg}, nil
	case EventMessageDelivered:
		var r model.DeliveryReceipt
		if err := unmarshal(ev, &r); err != nil {
			return nil, err
		}
		if r.MessageID == "" {
			return nil, invalid(ev, "missing messageId")
		}
		return MessageDelivered{Receipt: r}, nil
	case EventMessageRead:
		var r model.ReadReceipt
		if err := unmarshal(ev, &r); err != nil {
			return nil, err
		}
		if len(r.IDs()) == 0 {
			return nil, invalid(ev, "missing messageId")
		}
		return MessageRead{Receipt: r}, nil
	case EventTypingStart, EventTypingStop:
		var t model.TypingIndicator
		if err := unmarshal(ev, &t); err != nil {
			return nil, err
		}
		if t.SenderID == "" {
			return nil, invalid(ev, "missing senderId")
		}
		if ev.Event == EventTypingStart {
			return TypingStarted{Indicator: t}, nil
		}
		return TypingStopped{Indicator: t}, nil
	case EventMessageError, EventTypingError:
		var p model.ErrorPayload
		if len(ev.Data) > 0 {
			// error bodies are free-form on some backends; keep the raw text
			if err := json.Unmarshal(ev.Data, &p); err != nil {
				p.Message = string(ev.Data)
			}
		}
		return ChannelError{Event: ev.Event, Payload: p}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Event)
	}
}

func decodeMessage(ev WsEvent) (model.Message, error) {
	var msg model.Message
	if err := unmarshal(ev, &msg); err != nil {
		return msg, err
	}
	if msg.MessageID == "" {
		return msg, invalid(ev, "missing messageId")
	}
	if msg.ConversationID == "" {
		return msg, invalid(ev, "missing conversationId")
	}
	if msg.Timestamp.IsZero() {
		return msg, invalid(ev, "missing timestamp")
	}
	msg.Normalize()
	if !msg.Status.Valid() {
		return msg, invalid(ev, "unknown status "+string(msg.Status))
	}
	return msg, nil
}

func unmarshal(ev WsEvent, v any) error {
	if len(ev.Data) == 0 {
		return invalid(ev, "empty data")
	}
	if err := json.Unmarshal(ev.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, ev.Event, err)
	}
	return nil
}

func invalid(ev WsEvent, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, ev.Event, reason)
}
