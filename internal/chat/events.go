package chat

import (
	"go.uber.org/zap"

	"Outreach/internal/event"
	"Outreach/internal/model"
)

func (s *Session) handleEvent(in event.Incoming) {
	if s.closed {
		return
	}
	s.stats.Received[in.Name()]++

	switch e := in.(type) {
	case event.MessageReceived:
		s.onMessage(e.Message)
	case event.MessageSent:
		s.onMessage(e.Message)
	case event.MessageDelivered:
		s.onDelivered(e.Receipt)
	case event.MessageRead:
		s.onRead(e.Receipt)
	case event.TypingStarted:
		if s.towardMe(e.Indicator) {
			s.typing.RemoteStart(e.Indicator.SenderID)
		}
	case event.TypingStopped:
		if s.towardMe(e.Indicator) {
			s.typing.RemoteStop(e.Indicator.SenderID)
		}
	case event.ChannelError:
		s.onChannelError(e)
	default:
		s.logger.Warn("unhandled channel event", zap.String("event", in.Name()))
	}
}

// onMessage handles both new_message and the message_sent echo; the messageId
// de-duplication makes the two paths safe to overlap.
func (s *Session) onMessage(msg model.Message) {
	fromPeer := msg.SenderID != s.user.ID
	if fromPeer {
		// the message supersedes whatever typing state we had for the sender
		s.typing.RemoteStop(msg.SenderID)
	}

	if _, known := s.convs.Get(msg.ConversationID); !known {
		if p, ok := s.convs.FindPlaceholderByParticipants(msg.SenderID, msg.ReceiverID); ok {
			s.promote(p, msg.ConversationID, msg)
		} else {
			s.stats.UnknownConversations++
			s.logger.Info("message for unknown conversation, refreshing list",
				zap.String("conversation_id", msg.ConversationID),
				zap.String("message_id", msg.MessageID),
			)
			s.scheduleConversationRefresh()
			return
		}
	}

	if fromPeer && msg.ConversationID != s.active && msg.Status != model.MessageRead {
		s.convs.IncrementUnread(msg.ConversationID, msg.MessageID, s.user.ID)
	}
	s.convs.UpsertFromIncomingMessage(msg)
	s.msgs.Ingest(msg)
	s.notify()
}

func (s *Session) onDelivered(r model.DeliveryReceipt) {
	if s.msgs.UpdateStatus(r.MessageID, model.MessageDelivered) {
		s.notify()
	}
}

func (s *Session) onRead(r model.ReadReceipt) {
	changed := false
	for _, id := range r.IDs() {
		if s.msgs.UpdateStatus(id, model.MessageRead) {
			changed = true
		}
	}

	convID := r.ConversationID
	if convID == "" {
		convID = s.msgs.ConversationID()
	}
	if r.ReadBy != "" && r.ReadBy == s.user.ID && convID != "" {
		s.convs.ApplyReadAck(convID, s.user.ID)
		changed = true
	}
	if changed {
		s.notify()
	}
}

func (s *Session) onChannelError(e event.ChannelError) {
	s.stats.ChannelErrors[e.Event]++
	s.stats.LastChannelError = e.Payload.Message
	s.logger.Warn("channel reported an error",
		zap.String("event", e.Event),
		zap.String("code", e.Payload.Code),
		zap.String("message", e.Payload.Message),
	)
}

// towardMe filters typing indicators meant for someone else or echoed back to us.
func (s *Session) towardMe(t model.TypingIndicator) bool {
	if t.SenderID == "" || t.SenderID == s.user.ID {
		return false
	}
	return t.ReceiverID == "" || t.ReceiverID == s.user.ID
}
