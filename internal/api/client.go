package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"Outreach/internal/model"
	"Outreach/internal/retry"
)

var (
	ErrMaxRetriesExceeded  = errors.New("maximum retry attempts exceeded")
	ErrInvalidConversation = errors.New("invalid conversation id: cannot be empty")
	ErrOperationTimeout    = errors.New("operation timeout exceeded")
)

const (
	defaultReadTimeout = 15 * time.Second

	defaultMaxRetries = 3

	maxErrorBody = 4 << 10
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Paths are the backend routes, relative to the base url. Messages takes the
// conversation id through a single %s.
type Paths struct {
	Profile       string `json:"profile"`
	Recipients    string `json:"recipients"`
	Conversations string `json:"conversations"`
	Messages      string `json:"messages"`
}

func DefaultPaths() Paths {
	return Paths{
		Profile:       "/users/me",
		Recipients:    "/chat/recipients",
		Conversations: "/conversations",
		Messages:      "/conversations/%s/messages",
	}
}

type Options struct {
	BaseURL    string
	Token      string
	Paths      Paths
	Timeout    time.Duration // per call, when the caller's context has no deadline
	MaxRetries int
	HTTPClient *http.Client
}

// Client reads chat state from the backend REST API.
type Client struct {
	base    string
	token   string
	paths   Paths
	timeout time.Duration
	retries int
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultPaths()
	if opts.Paths.Profile == "" {
		opts.Paths.Profile = def.Profile
	}
	if opts.Paths.Recipients == "" {
		opts.Paths.Recipients = def.Recipients
	}
	if opts.Paths.Conversations == "" {
		opts.Paths.Conversations = def.Conversations
	}
	if opts.Paths.Messages == "" {
		opts.Paths.Messages = def.Messages
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultReadTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		paths:   opts.Paths,
		timeout: opts.Timeout,
		retries: opts.MaxRetries,
		http:    opts.HTTPClient,
		logger:  logger,
	}
}

// -----------------------------------------------------------------------------
// CurrentUser - the signed-in user's profile
// -----------------------------------------------------------------------------
func (c *Client) CurrentUser(ctx context.Context) (model.User, error) {
	body, err := c.get(ctx, c.paths.Profile)
	if err != nil {
		return model.User{}, err
	}
	user, err := decodeProfile(body)
	if err != nil {
		return model.User{}, fmt.Errorf("decode profile: %w", err)
	}
	return user, nil
}

// -----------------------------------------------------------------------------
// Recipients - users this user may start a chat with
// -----------------------------------------------------------------------------
func (c *Client) Recipients(ctx context.Context) ([]model.User, error) {
	body, err := c.get(ctx, c.paths.Recipients)
	if err != nil {
		return nil, err
	}
	users, err := decodeRecipients(body)
	if err != nil {
		return nil, fmt.Errorf("decode recipients: %w", err)
	}
	return users, nil
}

// -----------------------------------------------------------------------------
// Conversations - the canonical conversation list
// -----------------------------------------------------------------------------
func (c *Client) Conversations(ctx context.Context) ([]model.Conversation, error) {
	body, err := c.get(ctx, c.paths.Conversations)
	if err != nil {
		return nil, err
	}
	var raw []model.Conversation
	if err := decodeList(body, &raw); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}

	list := make([]model.Conversation, 0, len(raw))
	for _, conv := range raw {
		if conv.ConversationID == "" {
			c.logger.Warn("skipping conversation without id")
			continue
		}
		list = append(list, conv)
	}
	return list, nil
}

// -----------------------------------------------------------------------------
// Messages - history of one conversation
// -----------------------------------------------------------------------------
func (c *Client) Messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	if conversationID == "" {
		return nil, ErrInvalidConversation
	}
	body, err := c.get(ctx, fmt.Sprintf(c.paths.Messages, url.PathEscape(conversationID)))
	if err != nil {
		return nil, err
	}
	var raw []model.Message
	if err := decodeList(body, &raw); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	msgs := make([]model.Message, 0, len(raw))
	for _, msg := range raw {
		if msg.MessageID == "" {
			c.logger.Warn("skipping message without id", zap.String("conversation_id", conversationID))
			continue
		}
		if msg.ConversationID == "" {
			msg.ConversationID = conversationID
		}
		msg.Normalize()
		msgs = append(msgs, msg)
	}

	c.logger.Debug("messages fetched",
		zap.String("conversation_id", conversationID),
		zap.Int("count", len(msgs)),
	)
	return msgs, nil
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := retry.EnsureTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			if err := retry.Default.Wait(ctx, attempt); err != nil {
				return nil, c.handleReadError(err, path)
			}
			c.logger.Warn("retrying request",
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", c.retries),
			)
		}

		body, err := c.do(ctx, path)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !c.isRetryableError(err) {
			return nil, c.handleReadError(err, path)
		}
	}

	c.logger.Error("request failed after all retries", zap.String("path", path), zap.Error(lastErr))
	return nil, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, lastErr)
}

func (c *Client) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method: http.MethodGet,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

func (c *Client) handleReadError(err error, path string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		c.logger.Error("request timeout", zap.String("path", path))
		return fmt.Errorf("%w: %w", ErrOperationTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		c.logger.Debug("request cancelled", zap.String("path", path))
		return err
	}
	c.logger.Error("request failed", zap.String("path", path), zap.Error(err))
	return err
}
