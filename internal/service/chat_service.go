package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"Outreach/internal/chat"
	"Outreach/internal/model"
)

var (
	ErrInvalidAttachment    = errors.New("attachment needs a url")
	ErrUnknownRefreshTarget = errors.New("unknown refresh target")
)

const (
	RefreshRecipients    = "recipients"
	RefreshConversations = "conversations"
	RefreshAll           = "all"
)

// Session is the part of chat.Session the gateway drives.
type Session interface {
	State() chat.State
	Conversations() []*model.Conversation
	Messages() []model.Message
	DisplayItems() []chat.DisplayItem
	SelectConversation(token string) (*model.Conversation, error)
	SendMessage(content string, typ model.MessageType, attachments []model.Attachment) error
	MarkAsRead() error
	StartTyping() error
	StopTyping() error
	RefreshRecipients(ctx context.Context) error
	RefreshConversations(ctx context.Context) error
}

// SendRequest is the body of a send from the UI.
type SendRequest struct {
	Content     string             `json:"content"`
	MessageType model.MessageType  `json:"messageType"`
	Attachments []model.Attachment `json:"attachments"`
}

func (r SendRequest) Validate() error {
	for i, a := range r.Attachments {
		if strings.TrimSpace(a.URL) == "" {
			return fmt.Errorf("%w: attachment %d", ErrInvalidAttachment, i)
		}
	}
	return nil
}

// View is everything the UI renders, pushed on the live feed.
type View struct {
	State        chat.State         `json:"state"`
	DisplayItems []chat.DisplayItem `json:"displayItems"`
	Messages     []model.Message    `json:"messages"`
}

type ChatService interface {
	View() View
	State() chat.State
	Conversations() []*model.Conversation
	Messages() []model.Message
	DisplayItems(query string) []chat.DisplayItem
	Select(token string) (*model.Conversation, error)
	Send(req SendRequest) error
	MarkAsRead() error
	Typing(active bool) error
	Refresh(ctx context.Context, target string) error
}

type chatService struct {
	session Session
	logger  *zap.Logger
}

func NewChatService(session Session, logger *zap.Logger) ChatService {
	return &chatService{
		session: session,
		logger:  logger,
	}
}

func (s *chatService) View() View {
	return View{
		State:        s.session.State(),
		DisplayItems: s.session.DisplayItems(),
		Messages:     s.session.Messages(),
	}
}

func (s *chatService) State() chat.State {
	return s.session.State()
}

func (s *chatService) Conversations() []*model.Conversation {
	return s.session.Conversations()
}

func (s *chatService) Messages() []model.Message {
	return s.session.Messages()
}

// DisplayItems returns the sidebar rows, narrowed to those whose title or preview
// contains query (case-insensitive) when query is set.
func (s *chatService) DisplayItems(query string) []chat.DisplayItem {
	items := s.session.DisplayItems()
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return items
	}
	return Filter(items, func(it chat.DisplayItem) bool {
		return strings.Contains(strings.ToLower(it.Title), query) ||
			strings.Contains(strings.ToLower(it.Preview), query)
	})
}

func (s *chatService) Select(token string) (*model.Conversation, error) {
	conv, err := s.session.SelectConversation(token)
	if err != nil {
		s.logger.Debug("selection rejected", zap.String("token", token), zap.Error(err))
		return nil, err
	}
	return conv, nil
}

func (s *chatService) Send(req SendRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return s.session.SendMessage(req.Content, req.MessageType, req.Attachments)
}

func (s *chatService) MarkAsRead() error {
	return s.session.MarkAsRead()
}

func (s *chatService) Typing(active bool) error {
	if active {
		return s.session.StartTyping()
	}
	return s.session.StopTyping()
}

func (s *chatService) Refresh(ctx context.Context, target string) error {
	switch target {
	case RefreshRecipients:
		return s.session.RefreshRecipients(ctx)
	case RefreshConversations:
		return s.session.RefreshConversations(ctx)
	case RefreshAll, "":
		return errors.Join(
			s.session.RefreshRecipients(ctx),
			s.session.RefreshConversations(ctx),
		)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRefreshTarget, target)
	}
}
