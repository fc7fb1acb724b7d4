package chat

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"Outreach/internal/event"
	"Outreach/internal/model"
	"Outreach/internal/presence"
)

// SendMessage emits a message to the peer of the active conversation. Nothing is added
// to the message list here; the server echo does that.
func (s *Session) SendMessage(content string, typ model.MessageType, attachments []model.Attachment) error {
	var err error
	if doErr := s.do(func() { err = s.sendMessage(content, typ, attachments) }); doErr != nil {
		return doErr
	}
	return err
}

func (s *Session) sendMessage(content string, typ model.MessageType, attachments []model.Attachment) error {
	conv, peer, err := s.outgoingTarget()
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return ErrEmptyMessage
	}
	if typ == "" {
		typ = model.MessageTypeText
	}
	if !typ.Valid() {
		return ErrInvalidMessageType
	}

	out := event.SendMessage{
		ReceiverID:  peer,
		Content:     content,
		MessageType: typ,
		Attachments: attachments,
	}
	if !conv.Placeholder {
		out.ConversationID = conv.ConversationID
	}
	if err := s.emit(out); err != nil {
		return err
	}
	// a sent message ends the composing state
	s.typing.Stop(peer)
	return nil
}

// MarkAsRead asks the server to mark the active conversation read. Unread counts drop
// when the server acknowledges, not here.
func (s *Session) MarkAsRead() error {
	var err error
	if doErr := s.do(func() { err = s.markAsRead() }); doErr != nil {
		return doErr
	}
	return err
}

func (s *Session) markAsRead() error {
	conv, _, err := s.outgoingTarget()
	if err != nil {
		return err
	}
	if conv.Placeholder {
		return nil
	}
	ids := s.msgs.UnreadFrom(s.user.ID)
	if len(ids) == 0 && conv.Unread(s.user.ID) == 0 {
		return nil
	}
	return s.emit(event.MarkRead{ConversationID: conv.ConversationID, MessageIDs: ids})
}

// StartTyping records a keystroke toward the active conversation's peer.
func (s *Session) StartTyping() error {
	var err error
	if doErr := s.do(func() {
		var peer string
		if _, peer, err = s.outgoingTarget(); err == nil {
			s.typing.Keystroke(peer)
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// StopTyping ends local typing toward the active conversation's peer.
func (s *Session) StopTyping() error {
	var err error
	if doErr := s.do(func() {
		var peer string
		if _, peer, err = s.outgoingTarget(); err == nil {
			s.typing.Stop(peer)
		}
	}); doErr != nil {
		return doErr
	}
	return err
}

// RefreshRecipients reloads the recipient list. On failure the old list stays.
func (s *Session) RefreshRecipients(ctx context.Context) error {
	if s.cfg.Backend == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	users, err := s.cfg.Backend.Recipients(ctx)
	if err != nil {
		_ = s.do(func() { s.stats.FetchFailures++ })
		s.logger.Warn("recipients fetch failed", zap.Error(err))
		return err
	}
	return s.do(func() {
		if s.closed {
			return
		}
		s.recipients = users
		s.notify()
		s.saveSnapshot()
	})
}

// RefreshConversations reloads the conversation list and merges it into the store. On
// failure the old list stays.
func (s *Session) RefreshConversations(ctx context.Context) error {
	if s.cfg.Backend == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	list, err := s.cfg.Backend.Conversations(ctx)
	if err != nil {
		_ = s.do(func() { s.stats.FetchFailures++ })
		s.logger.Warn("conversations fetch failed", zap.Error(err))
		return err
	}
	return s.do(func() { s.applyConversations(list) })
}

// scheduleConversationRefresh refreshes the list in the background. Requests made while
// one is in flight collapse into it.
func (s *Session) scheduleConversationRefresh() {
	if s.closed || s.refreshPending || s.cfg.Backend == nil {
		return
	}
	s.refreshPending = true
	s.spawn(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()

		list, err := s.cfg.Backend.Conversations(ctx)
		s.post(func() {
			s.refreshPending = false
			if err != nil {
				s.stats.FetchFailures++
				s.logger.Warn("background conversations refresh failed", zap.Error(err))
				return
			}
			s.applyConversations(list)
		})
	})
}

func (s *Session) applyConversations(list []model.Conversation) {
	if s.closed {
		return
	}
	s.convs.Merge(list)

	// the active placeholder may have just become a real conversation
	if s.active != "" {
		if _, ok := s.convs.Get(s.active); !ok {
			if conv, ok := s.convs.FindByParticipants(s.user.ID, s.activePeer); ok && s.activePeer != "" {
				s.stats.Promotions++
				s.activate(conv)
			}
		}
	}
	s.notify()
	s.saveSnapshot()
}

// outgoingTarget checks the preconditions shared by every outgoing action and returns the
// active conversation and its peer.
func (s *Session) outgoingTarget() (*model.Conversation, string, error) {
	if s.closed {
		return nil, "", ErrClosed
	}
	if !s.connected || s.channel == nil {
		return nil, "", ErrNotConnected
	}
	conv, ok := s.activeConversation()
	if !ok {
		return nil, "", ErrNoActiveConversation
	}
	peer, ok := conv.PeerOf(s.user.ID)
	if !ok || s.user.ID == "" {
		return nil, "", ErrNoCurrentUser
	}
	return conv, peer.UserID, nil
}

// emitTyping is the tracker's emitter. It runs on the loop.
func (s *Session) emitTyping(peer string, sig presence.Signal) {
	indicator := s.typingIndicator(peer)
	var out event.Outgoing = event.TypingStart{TypingIndicator: indicator}
	if sig == presence.SignalStop {
		out = event.TypingStop{TypingIndicator: indicator}
	}
	if err := s.emit(out); err != nil {
		s.logger.Debug("typing signal dropped", zap.String("peer", peer), zap.Error(err))
	}
}

func (s *Session) typingIndicator(peer string) model.TypingIndicator {
	indicator := model.TypingIndicator{SenderID: s.user.ID, ReceiverID: peer}
	if conv, ok := s.convs.FindByParticipants(s.user.ID, peer); ok {
		indicator.ConversationID = conv.ConversationID
	}
	return indicator
}
