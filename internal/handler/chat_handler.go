package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"Outreach/internal/chat"
	"Outreach/internal/service"
)

type ChatHandler interface {
	GetView(c *gin.Context)
	GetState(c *gin.Context)
	GetConversations(c *gin.Context)
	GetMessages(c *gin.Context)
	GetDisplayItems(c *gin.Context)
	SelectConversation(c *gin.Context)
	SendMessage(c *gin.Context)
	MarkAsRead(c *gin.Context)
	StartTyping(c *gin.Context)
	StopTyping(c *gin.Context)
	Refresh(c *gin.Context)
}

type chatHandler struct {
	service service.ChatService
}

func NewChatHandler(service service.ChatService) ChatHandler {
	return &chatHandler{
		service: service,
	}
}

type selectRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *chatHandler) GetView(c *gin.Context) {
	ok(c, h.service.View(), "Chat view retrieved successfully")
}

func (h *chatHandler) GetState(c *gin.Context) {
	ok(c, h.service.State(), "Chat state retrieved successfully")
}

func (h *chatHandler) GetConversations(c *gin.Context) {
	ok(c, h.service.Conversations(), "Conversations retrieved successfully")
}

func (h *chatHandler) GetMessages(c *gin.Context) {
	ok(c, h.service.Messages(), "Messages retrieved successfully")
}

func (h *chatHandler) GetDisplayItems(c *gin.Context) {
	ok(c, h.service.DisplayItems(c.Query("q")), "Display items retrieved successfully")
}

func (h *chatHandler) SelectConversation(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid selection: "+err.Error())
		return
	}

	conv, err := h.service.Select(req.Token)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, conv, "Conversation selected")
}

func (h *chatHandler) SendMessage(c *gin.Context) {
	var req service.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid message: "+err.Error())
		return
	}

	if err := h.service.Send(req); err != nil {
		failWith(c, err)
		return
	}
	accepted(c, "Message sent")
}

func (h *chatHandler) MarkAsRead(c *gin.Context) {
	if err := h.service.MarkAsRead(); err != nil {
		failWith(c, err)
		return
	}
	accepted(c, "Read receipt sent")
}

func (h *chatHandler) StartTyping(c *gin.Context) {
	if err := h.service.Typing(true); err != nil {
		failWith(c, err)
		return
	}
	accepted(c, "Typing started")
}

func (h *chatHandler) StopTyping(c *gin.Context) {
	if err := h.service.Typing(false); err != nil {
		failWith(c, err)
		return
	}
	accepted(c, "Typing stopped")
}

func (h *chatHandler) Refresh(c *gin.Context) {
	if err := h.service.Refresh(c.Request.Context(), c.Param("target")); err != nil {
		failWith(c, err)
		return
	}
	ok(c, h.service.State(), "Refreshed")
}

// -----------------------------------------------------------------------------
// Envelope
// -----------------------------------------------------------------------------

func ok(c *gin.Context, body any, message string) {
	c.JSON(http.StatusOK, gin.H{
		"HttpStatusCode": http.StatusOK,
		"ResponseBody":   body,
		"IsSuccess":      true,
		"Message":        message,
	})
}

// accepted answers actions whose effect arrives later over the channel.
func accepted(c *gin.Context, message string) {
	c.JSON(http.StatusAccepted, gin.H{
		"HttpStatusCode": http.StatusAccepted,
		"ResponseBody":   nil,
		"IsSuccess":      true,
		"Message":        message,
	})
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"HttpStatusCode": code,
		"ResponseBody":   nil,
		"IsSuccess":      false,
		"Message":        message,
	})
}

func failWith(c *gin.Context, err error) {
	fail(c, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, chat.ErrNoActiveConversation),
		errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrInvalidMessageType),
		errors.Is(err, service.ErrInvalidAttachment):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrUnknownConversation),
		errors.Is(err, chat.ErrUnknownRecipient),
		errors.Is(err, service.ErrUnknownRefreshTarget):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrNoCurrentUser):
		return http.StatusServiceUnavailable
	case errors.Is(err, chat.ErrClosed):
		return http.StatusGone
	default:
		return http.StatusBadGateway
	}
}
