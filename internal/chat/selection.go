package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Outreach/internal/event"
	"Outreach/internal/model"
)

// RecipientPrefix marks a selection token naming a recipient rather than a conversation.
const RecipientPrefix = "recipient-"

// RecipientToken is the selection token for starting a chat with userID.
func RecipientToken(userID string) string {
	return RecipientPrefix + userID
}

// SelectConversation makes token the active conversation. token is either a conversation
// id or a recipient token. A recipient without a conversation gets a placeholder; selecting
// the same recipient again returns that same placeholder.
func (s *Session) SelectConversation(token string) (*model.Conversation, error) {
	var (
		conv *model.Conversation
		err  error
	)
	if doErr := s.do(func() { conv, err = s.selectConversation(token) }); doErr != nil {
		return nil, doErr
	}
	return conv, err
}

func (s *Session) selectConversation(token string) (*model.Conversation, error) {
	if s.closed {
		return nil, ErrClosed
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty selection", ErrUnknownConversation)
	}

	if !strings.HasPrefix(token, RecipientPrefix) {
		conv, ok := s.convs.Get(token)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownConversation, token)
		}
		s.activate(conv)
		return conv, nil
	}

	recipientID := strings.TrimPrefix(token, RecipientPrefix)
	if recipientID == "" {
		return nil, fmt.Errorf("%w: empty recipient token", ErrUnknownRecipient)
	}
	if s.user.ID == "" {
		return nil, ErrNoCurrentUser
	}

	if conv, ok := s.convs.FindByParticipants(s.user.ID, recipientID); ok {
		s.activate(conv)
		return conv, nil
	}
	if p, ok := s.convs.Placeholder(recipientID); ok {
		s.activate(p)
		return p, nil
	}

	recipient, ok := s.recipient(recipientID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRecipient, recipientID)
	}

	now := s.cfg.Clock.Now()
	me := s.user
	p := &model.Conversation{
		ConversationID: model.PlaceholderPrefix + uuid.NewString(),
		Participants: []model.Participant{
			{UserID: me.ID, JoinedAt: now, Details: &me},
			{UserID: recipient.ID, JoinedAt: now, Details: &recipient},
		},
		UnreadCount: map[string]int{},
		UpdatedAt:   now,
		Placeholder: true,
	}
	s.convs.PutPlaceholder(recipientID, p)
	s.logger.Debug("placeholder conversation created",
		zap.String("conversation_id", p.ConversationID),
		zap.String("recipient_id", recipientID),
	)

	p, _ = s.convs.Placeholder(recipientID)
	s.activate(p)
	return p, nil
}

// activate switches the message list to conv. Persisted conversations load their history
// and join the room; placeholders have neither.
func (s *Session) activate(conv *model.Conversation) {
	if prev, ok := s.activeConversation(); ok && prev.ConversationID != conv.ConversationID {
		if peer, ok := prev.PeerOf(s.user.ID); ok {
			s.typing.Stop(peer.UserID)
		}
	}

	s.activeSeq++
	s.activePeer = ""
	if peer, ok := conv.PeerOf(s.user.ID); ok {
		s.activePeer = peer.UserID
	}
	if s.active != conv.ConversationID || s.msgs.ConversationID() != conv.ConversationID {
		s.active = conv.ConversationID
		s.msgs.Reset(conv.ConversationID)
	}
	s.notify()

	if conv.Placeholder {
		return
	}
	if s.connected {
		_ = s.emit(event.JoinConversation{ConversationID: conv.ConversationID})
	}
	s.loadHistory(conv.ConversationID, s.activeSeq)
}

// loadHistory fetches conversationID's messages off the loop. The result only applies if
// the same selection is still active when it lands.
func (s *Session) loadHistory(conversationID string, seq uint64) {
	if s.cfg.Backend == nil {
		return
	}
	s.spawn(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()

		history, err := s.cfg.Backend.Messages(ctx, conversationID)
		s.post(func() { s.applyHistory(conversationID, seq, history, err) })
	})
}

func (s *Session) applyHistory(conversationID string, seq uint64, history []model.Message, err error) {
	if s.closed {
		return
	}
	if err != nil {
		s.stats.FetchFailures++
		s.logger.Warn("history fetch failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return
	}
	if conversationID != s.active || seq != s.activeSeq {
		s.stats.StaleFetches++
		s.logger.Debug("discarding stale history",
			zap.String("conversation_id", conversationID),
			zap.String("active", s.active),
		)
		return
	}
	if s.msgs.LoadHistory(conversationID, history) {
		s.notify()
	}
}

// promote turns the placeholder p into the persisted conversation realID, carrying the
// selection over when p was active.
func (s *Session) promote(p *model.Conversation, realID string, msg model.Message) {
	conv, err := s.convs.Promote(p.ConversationID, realID, msg.Timestamp)
	if err != nil {
		return
	}
	s.stats.Promotions++
	s.logger.Info("placeholder conversation promoted",
		zap.String("placeholder_id", p.ConversationID),
		zap.String("conversation_id", realID),
	)
	if s.active == p.ConversationID {
		s.activate(conv)
	}
}

func (s *Session) activeConversation() (*model.Conversation, bool) {
	if s.active == "" {
		return nil, false
	}
	return s.convs.Get(s.active)
}

func (s *Session) recipient(id string) (model.User, bool) {
	for _, r := range s.recipients {
		if r.ID == id {
			return r, true
		}
	}
	return model.User{}, false
}
